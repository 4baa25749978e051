// Package auth resolves API tokens to accounts and answers the permission
// questions the handlers ask: who is calling, and may they edit a given
// patch or project.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/patchtrack/patchtrack/internal/model"
	"github.com/patchtrack/patchtrack/internal/store"
)

type ctxKey int

const accountKey ctxKey = iota

// Authenticator is the account and identity lookup the middleware and the
// permission helpers need.
type Authenticator interface {
	AccountByToken(token string) (*model.Account, error)
	IsMaintainer(projectID, accountID int64) (bool, error)
	GetPerson(id int64) (*model.Person, error)
}

// Middleware resolves an "Authorization: Token <token>" header to an
// account on the request context. Requests without a token pass through
// anonymously; the handlers decide which operations need an account.
func Middleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			account, err := a.AccountByToken(token)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError),
					http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), accountKey, account)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Token") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// FromContext returns the authenticated account, or nil for anonymous
// requests.
func FromContext(ctx context.Context) *model.Account {
	account, _ := ctx.Value(accountKey).(*model.Account)

	return account
}

// CanEditPatch reports whether the account may modify the patch:
// superusers, the patch's delegate and maintainers of the patch's project
// can. Accounts tie to person identities by email, so an account whose
// email matches the delegate person is the delegate.
func CanEditPatch(a Authenticator, account *model.Account, patch *model.Patch) (bool, error) {
	if account == nil {
		return false, nil
	}
	if account.Superuser {
		return true, nil
	}

	if patch.Delegate != nil {
		person, err := a.GetPerson(*patch.Delegate)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return false, err
		}
		if person != nil && strings.EqualFold(person.Email, account.Email) {
			return true, nil
		}
	}

	return a.IsMaintainer(patch.ProjectID, account.ID)
}

// CanEditProject reports whether the account may modify the project.
func CanEditProject(a Authenticator, account *model.Account, projectID int64) (bool, error) {
	if account == nil {
		return false, nil
	}

	return a.IsMaintainer(projectID, account.ID)
}
