//
// patchtrackd
// ===========
// The patch tracking REST service. Patches, projects, people, checks and
// bundles live in SQLite; the push hook (cmd/pthook) and CI systems talk
// to the /api/1.0 routes.
//
// Boot the server:
// ----------------
// $ go run . -db patchtrack.db
//
// Client requests:
// ----------------
// $ curl http://localhost:3333/api/1.0/patches/
// {"count":0,"results":[]}
//
// $ curl 'http://localhost:3333/api/1.0/patches/?project=linux-api&state=New'
// $ curl -X PATCH -H 'Authorization: Token <token>' \
//     -d '{"state_name":"Accepted","commit_ref":"f00dfeed"}' \
//     http://localhost:3333/api/1.0/patches/1/
//
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/docgen"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
	export "go.opentelemetry.io/otel/sdk/export/metric"
	"go.opentelemetry.io/otel/sdk/metric/aggregator/histogram"
	controller "go.opentelemetry.io/otel/sdk/metric/controller/basic"
	processor "go.opentelemetry.io/otel/sdk/metric/processor/basic"
	selector "go.opentelemetry.io/otel/sdk/metric/selector/simple"

	"github.com/patchtrack/patchtrack/internal/auth"
	"github.com/patchtrack/patchtrack/internal/bundle"
	"github.com/patchtrack/patchtrack/internal/check"
	"github.com/patchtrack/patchtrack/internal/model"
	"github.com/patchtrack/patchtrack/internal/patch"
	"github.com/patchtrack/patchtrack/internal/person"
	"github.com/patchtrack/patchtrack/internal/project"
	"github.com/patchtrack/patchtrack/internal/store"
)

const ServiceName = "patchtrackd"

// App carries what the top-level handlers and middleware share.
type App struct {
	sugarLogger *zap.SugaredLogger
	store       *store.Store
}

func main() {
	var (
		routes   = flag.Bool("routes", getEnvBool(ServiceName+"_ROUTES", false), "Generate router documentation")
		addr     = flag.String("addr", getEnv(ServiceName+"_ADDR", ":3333"), "application port")
		diagAddr = flag.String("diag_addr", getEnv(ServiceName+"_DIAG_ADDR", ":9999"), "diag port")
		dbPath   = flag.String("db", getEnv(ServiceName+"_DB", "patchtrack.db"), "sqlite database path")
	)

	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync() // flushes buffer, if any
	sugar := logger.Sugar()

	st, err := store.Open(*dbPath)
	if err != nil {
		sugar.Fatalw("opening store", "db", *dbPath, "err", err)
	}
	defer st.Close()

	a := App{
		sugarLogger: sugar,
		store:       st,
	}

	if err := a.bootstrapAdmin(); err != nil {
		sugar.Fatalw("bootstrapping admin account", "err", err)
	}

	config := prometheus.Config{}
	c := controller.New(
		processor.New(
			selector.NewWithHistogramDistribution(
				histogram.WithExplicitBoundaries(config.DefaultHistogramBoundaries),
			),
			export.CumulativeExportKindSelector(),
			processor.WithMemory(true),
		),
	)
	exporter, err := prometheus.New(config, c)
	if err != nil {
		sugar.Panicf("failed to initialize prometheus exporter %v", err)
	}
	global.SetMeterProvider(exporter.MeterProvider())

	meter := global.Meter(ServiceName)
	completedCount := metric.Must(meter).NewInt64Counter(
		"http/server/completed_count",
		metric.WithDescription("Count of completed requests"),
	).Bind(attribute.String("service", ServiceName))
	defer completedCount.Unbind()

	r := chi.NewRouter()

	diagRouter := chi.NewRouter()
	diagRouter.Get("/metrics", exporter.ServeHTTP)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(auth.Middleware(st))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			completedCount.Add(req.Context(), 1)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(ServiceName + ".")); err != nil {
			sugar.Errorw(err.Error())
		}
	})

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("pong")); err != nil {
			sugar.Errorw(err.Error())
		}
	})

	patchAPI := &patch.API{Store: st, Auth: st, Log: sugar}
	checkAPI := &check.API{Store: st, Auth: st, Log: sugar}
	personAPI := &person.API{Store: st, Log: sugar}
	projectAPI := &project.API{Store: st, Auth: st, Log: sugar}
	bundleAPI := &bundle.API{Store: st, Log: sugar}

	r.Route("/api/1.0", func(r chi.Router) {
		r.Route("/patches", func(r chi.Router) {
			r.Get("/", patchAPI.List)
			r.Post("/", patchAPI.Forbidden)

			r.Route("/{patchID}", func(r chi.Router) {
				r.Use(patchAPI.Ctx) // Load the *Patch on the request context
				r.Get("/", patchAPI.Get)
				r.Patch("/", patchAPI.Update)
				r.Put("/", patchAPI.Update)
				r.Delete("/", patchAPI.Forbidden)
				r.Get("/mbox", patchAPI.Mbox)
				r.Get("/check", checkAPI.Combined)

				r.Route("/checks", func(r chi.Router) {
					r.Get("/", checkAPI.List)
					r.Post("/", checkAPI.Create)
					r.Get("/{checkID}", checkAPI.Get)
					r.Patch("/{checkID}", checkAPI.Forbidden)
					r.Delete("/{checkID}", checkAPI.Forbidden)
				})
			})
		})

		r.Route("/people", func(r chi.Router) {
			r.Use(personAPI.RequireAccount)
			r.Get("/", personAPI.List)
			r.Post("/", personAPI.Forbidden)
			r.Get("/{personID}", personAPI.Get)
			r.Patch("/{personID}", personAPI.Forbidden)
			r.Delete("/{personID}", personAPI.Forbidden)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projectAPI.List)
			r.Post("/", projectAPI.Forbidden)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Use(projectAPI.Ctx)
				r.Get("/", projectAPI.Get)
				r.Patch("/", projectAPI.Update)
				r.Put("/", projectAPI.Update)
				r.Delete("/", projectAPI.Forbidden)
			})
		})

		r.Route("/bundles", func(r chi.Router) {
			r.Get("/", bundleAPI.List)
			r.Get("/{bundleID}", bundleAPI.Get)
		})
	})

	// Passing -routes to the program will generate docs for the above
	// router definition.
	if *routes {
		fmt.Println(docgen.MarkdownRoutesDoc(r, docgen.MarkdownOpts{
			ProjectPath: "github.com/patchtrack/patchtrack",
			Intro:       "patchtrackd generated routes.",
		}))

		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: *addr, Handler: r}
	diagSrv := &http.Server{Addr: *diagAddr, Handler: diagRouter}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infow("serving api", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sugar.Infow("serving diagnostics", "addr", *diagAddr)
		if err := diagSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		diagSrv.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("server exited", "err", err)
	}
}

// bootstrapAdmin makes sure a fresh instance has one superuser credential to
// manage the rest with. The token comes from PATCHTRACKD_ADMIN_TOKEN, or is
// generated and logged once when the variable is unset.
func (a *App) bootstrapAdmin() error {
	if _, err := a.store.AccountByUsername("admin"); err == nil {
		return nil
	}

	token := os.Getenv("PATCHTRACKD_ADMIN_TOKEN")
	generated := false
	if token == "" {
		token = uuid.NewString()
		generated = true
	}

	_, err := a.store.CreateAccount(&model.Account{
		Username:  "admin",
		Email:     "admin@localhost",
		Superuser: true,
		Token:     token,
	})
	if err != nil {
		return err
	}

	if generated {
		a.sugarLogger.Infow("admin account bootstrapped", "token", token)
	} else {
		a.sugarLogger.Infow("admin account bootstrapped")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}

	return b
}
