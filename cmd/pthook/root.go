package main

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patchtrack/patchtrack/client"
	"github.com/patchtrack/patchtrack/internal/config"
)

var (
	cfgPath string
	cfg     *config.Config
	log     *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:           "pthook",
	Short:         "patchtrack push-hook tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
		log = newLogger()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(),
		"path to the pthook config file")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pthook.yaml"
	}

	return filepath.Join(home, ".pthook.yaml")
}

// newLogger builds the hook logger: human-readable lines on stderr, which
// git relays back to the pusher.
func newLogger() *zap.SugaredLogger {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.DisableStacktrace = true
	zcfg.DisableCaller = true

	logger, err := zcfg.Build()
	if err != nil {
		// fall back to a no-op logger rather than dying in a hook
		return zap.NewNop().Sugar()
	}

	return logger.Sugar()
}

func apiClient() *client.Client {
	return &client.Client{
		Client: http.Client{Timeout: cfg.API.Timeout},
		Addr:   cfg.API.URL,
		Token:  cfg.API.Token,
	}
}
