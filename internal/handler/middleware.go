package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// Logger writes one structured access-log line per request.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			path := r.URL.Path
			if r.URL.RawQuery != "" {
				path += "?" + r.URL.RawQuery
			}
			logger.Info("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"latency", time.Since(start),
				"client_ip", r.RemoteAddr,
			)
		})
	}
}

// CORS allows the configured origins. A single "*" allows any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	wildcard := false
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			wildcard = true
		}
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := allowed[origin]; ok || wildcard {
					h := w.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
					h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
					h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					h.Add("Vary", "Origin")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserResolver loads the account behind a verified token subject.
type UserResolver interface {
	Resolve(ctx context.Context, userID string, issuedAt time.Time) (model.User, error)
}

type userCtxKey struct{}

// userFromContext returns the authenticated user, if any.
func userFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(model.User)
	return u, ok
}

// Authenticator verifies HS256 bearer tokens issued by the identity provider.
// The token subject is the user id.
type Authenticator struct {
	secret []byte
	issuer string
	users  UserResolver
	h      *Handler
}

// NewAuthenticator returns identity middleware. An empty issuer skips the
// issuer check.
func NewAuthenticator(h *Handler, secret, issuer string, users UserResolver) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, users: users, h: h}
}

var errNoToken = errors.New("missing bearer token")

func (a *Authenticator) parse(r *http.Request) (*jwt.RegisteredClaims, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errNoToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// identify resolves the caller. It writes the failure response itself and
// reports false when the request must stop.
func (a *Authenticator) identify(w http.ResponseWriter, r *http.Request, claims *jwt.RegisteredClaims) (model.User, bool) {
	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	user, err := a.users.Resolve(r.Context(), claims.Subject, issuedAt)
	if err != nil {
		if reason, _ := model.ReasonOf(err); reason == model.ReasonNotFound {
			writeStatus(w, http.StatusUnauthorized, "unauthorized", "unknown user")
			return model.User{}, false
		}
		a.h.writeError(w, r, err)
		return model.User{}, false
	}
	if !user.CanAct() {
		writeStatus(w, http.StatusForbidden, "forbidden", "account is suspended")
		return model.User{}, false
	}
	return user, true
}

// Authenticate rejects requests without a valid token for an active user.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.parse(r)
		if err != nil {
			writeStatus(w, http.StatusUnauthorized, "unauthorized", "invalid or missing token")
			return
		}
		user, ok := a.identify(w, r, claims)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, user)))
	})
}

// OptionalAuth attaches the user when a token is present and lets anonymous
// requests through.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.parse(r)
		if errors.Is(err, errNoToken) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			writeStatus(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		user, ok := a.identify(w, r, claims)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, user)))
	})
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "unauthorized", "invalid or missing token")
			return
		}
		if user.Role != model.RoleAdmin {
			writeStatus(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
