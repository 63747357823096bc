package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/claude/hybridathlete/internal/observability"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"tailscale.com/client/tailscale/apitype"
)

type contextKey int

const (
	userInfoKey contextKey = iota
	userIDKey
)

// UserInfo is the identity presented by the request, before it is mapped to a user row.
type UserInfo struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

var devUser = UserInfo{Login: "local", DisplayName: "Local Dev User"}

func withUserInfo(r *http.Request, info UserInfo) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userInfoKey, info))
}

// userInfoFromContext returns the identity set by an identity middleware, or
// the local dev user when none ran.
func userInfoFromContext(r *http.Request) UserInfo {
	if info, ok := r.Context().Value(userInfoKey).(UserInfo); ok {
		return info
	}
	return devUser
}

// userIDFromContext returns the user ID resolved by resolveUser.
func userIDFromContext(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(userIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// mustUserID writes 401 and returns false when no user was resolved.
func mustUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := userIDFromContext(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return uuid.Nil, false
	}
	return id, true
}

// DevIdentity treats every request as the local dev user.
func DevIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, withUserInfo(r, devUser))
	})
}

// whoIser is the part of the tailscale local client used for identity.
type whoIser interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// TailscaleIdentity identifies the caller by their tailnet login. lookup is
// called per request so the client can be attached after routes are built.
func TailscaleIdentity(lookup func() whoIser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wi := lookup()
			if wi == nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "tailscale not ready"})
				return
			}
			who, err := wi.WhoIs(r.Context(), r.RemoteAddr)
			if err != nil || who.UserProfile == nil || who.UserProfile.LoginName == "" {
				log.Warn("tailscale whois failed", "remote", r.RemoteAddr, "error", err)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown tailnet peer"})
				return
			}
			info := UserInfo{Login: who.UserProfile.LoginName, DisplayName: who.UserProfile.DisplayName}
			next.ServeHTTP(w, withUserInfo(r, info))
		})
	}
}

var errInvalidToken = errors.New("invalid bearer token")

// parseToken validates an HS256 token and returns its subject and name claims.
func parseToken(token, secret, issuer string) (UserInfo, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return UserInfo{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return UserInfo{}, fmt.Errorf("%w: missing sub", errInvalidToken)
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name = sub
	}
	return UserInfo{Login: sub, DisplayName: name}, nil
}

// JWTIdentity identifies the caller from an HS256 bearer token. The sub claim
// is the login and the optional name claim the display name.
func JWTIdentity(secret, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
				return
			}
			info, err := parseToken(strings.TrimSpace(token), secret, issuer)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, withUserInfo(r, info))
		})
	}
}

// resolveUser maps the request's UserInfo to a user ID, creating the user and
// their profile on first sight.
func (s *Server) resolveUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := userInfoFromContext(r)
		id, err := s.userID(r.Context(), info)
		if err != nil {
			s.log.Error("resolving user", "login", info.Login, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not resolve user"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

// APIKeyAuth returns middleware that validates the X-API-Key header.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				http.Error(w, `{"error":"missing API key"}`, http.StatusUnauthorized)
				return
			}
			if key != apiKey {
				http.Error(w, `{"error":"invalid API key"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogging returns middleware that logs and counts each request.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			observability.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// CORS adds permissive CORS headers for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming responses (the MCP transport) pass through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
