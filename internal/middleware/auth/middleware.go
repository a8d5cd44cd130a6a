package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
)

// Actor is the user attributed in job logs and activity events. Requests
// without a resolvable session act as the system user, matching the
// original service behavior.
type Actor struct {
	ID   string
	Name string
}

var systemActor = Actor{ID: "system", Name: "System"}

type ctxKey struct{}

func WithActorContext(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(ctxKey{}).(Actor); ok {
		return a
	}
	return systemActor
}

// WithActor resolves the bearer token against the session store and stashes
// the actor in the request context. It never rejects: authentication is the
// excluded collaborator's job.
func WithActor(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := systemActor
			header := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
				if s, err := store.Find(r.Context(), token); err == nil {
					actor = Actor{ID: s.UserID, Name: s.UserName}
				}
			}
			next.ServeHTTP(w, r.WithContext(WithActorContext(r.Context(), actor)))
		})
	}
}

// BasicAuth guards the operational endpoints (metrics).
func BasicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			creds, ok := strings.CutPrefix(header, "Basic ")
			if !ok {
				requireAuth(w)
				return
			}

			decoded, err := base64.StdEncoding.DecodeString(creds)
			if err != nil {
				requireAuth(w)
				return
			}

			pair := strings.SplitN(string(decoded), ":", 2)
			if len(pair) != 2 || pair[0] != username || pair[1] != password {
				requireAuth(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Operations"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
