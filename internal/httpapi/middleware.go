package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"

	"github.com/dmitrymomot/broadcaster/pkg/logger"
)

const stackSize = 4096

type claimsKey struct{}

// Claims returns the JWT claims stored by the auth middleware.
func Claims(ctx context.Context) *jwt.RegisteredClaims {
	c, _ := ctx.Value(claimsKey{}).(*jwt.RegisteredClaims)
	return c
}

// requireJWT accepts HS256 bearer tokens signed with secret.
func requireJWT(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, errUnauthorized("Unauthorized"))
				return
			}

			claims := &jwt.RegisteredClaims{}
			if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
				msg := "Invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "Token expired"
				}
				writeError(w, errUnauthorized(msg))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			if claims.Subject != "" {
				ctx = logger.WithField(ctx, logger.UserID, claims.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// withRequestID copies chi's request id into the logging context.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set(middleware.RequestIDHeader, reqID)
			r = r.WithContext(logger.WithField(r.Context(), logger.RequestID, reqID))
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a panic into an INTERNAL_ERROR envelope.
func recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := make([]byte, stackSize)
				stack = stack[:runtime.Stack(stack, false)]
				log.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(stack)),
				)
				writeError(w, errInternal())
			}()

			next.ServeHTTP(w, r)
		})
	}
}
