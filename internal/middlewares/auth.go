package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/corptrain/playback/internal/auth"
)

const userIDKey contextKey = "userID"

// AccessTokenValidator resolves an access token to its claims
type AccessTokenValidator interface {
	ValidateAccessToken(token string) (auth.Claims, error)
}

// AuthMiddleware validates the access token from the Authorization header or the
// access_token cookie and stores the learner id in the request context
func AuthMiddleware(validator AccessTokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if cookie, err := r.Cookie("access_token"); err == nil {
					token = cookie.Value
				}
			}
			if token == "" {
				unauthorized(w, `{"error":"authentication required"}`)
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				unauthorized(w, `{"error":"invalid or expired token"}`)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.LearnerID)))
		})
	}
}

// WithUserID returns a context carrying the authenticated learner id
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the authenticated learner id from context
func GetUserID(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(userIDKey).(int)
	return userID, ok
}

func bearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func unauthorized(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(body))
}
