package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/exp/slog"

	"confsync/internal/domain/session"
)

type Auth struct {
	session session.Servicer
	log     *slog.Logger
}

func New(session session.Servicer, log *slog.Logger) *Auth {
	return &Auth{
		session: session,
		log:     log.With("component", "auth_middleware"),
	}
}

type contextKey string

const UserIDKey contextKey = "userID"

// Middleware проверяет токен сессии: либо заголовок Authorization
// (Bearer), либо параметр access_token - так токен передает потоковый
// REST-протокол.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		} else {
			token = r.URL.Query().Get("access_token")
		}

		if token == "" {
			a.unauthorized(w, "missing token")
			return
		}

		userID, err := a.session.Validate(r.Context(), token)
		if err != nil {
			a.unauthorized(w, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) unauthorized(w http.ResponseWriter, reason string) {
	a.log.Debug("Запрос отклонен", "reason", reason)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "Unauthorized",
	})
}

func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}
