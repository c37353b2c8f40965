package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mmeshcher/bundlemart/internal/security"
)

const adminLoginKey contextKey = "adminLogin"

// TokenParser проверяет токен администратора.
type TokenParser interface {
	Parse(token string) (security.AdminClaims, error)
}

// AdminMiddleware пропускает только запросы с действующим токеном администратора
// в заголовке Authorization: Bearer.
func AdminMiddleware(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" || tokens == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(token))
			if err != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), adminLoginKey, claims.Login)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminLoginFromContext извлекает логин администратора из контекста запроса.
func GetAdminLoginFromContext(ctx context.Context) (string, bool) {
	login, ok := ctx.Value(adminLoginKey).(string)
	return login, ok
}
