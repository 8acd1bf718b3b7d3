package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
)

type ctxSubjectKey struct{}

// GetRequestSubject returns the token subject stored by Middleware.
func GetRequestSubject(r *http.Request) string {
	if subject, ok := r.Context().Value(ctxSubjectKey{}).(string); ok {
		return subject
	}
	return ""
}

// AdminSubject is the token subject allowed to mint tokens for other clients.
const AdminSubject = "admin"

// AdminOnly rejects requests whose token was not issued to AdminSubject.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestSubject(r) != AdminSubject {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		token, _ := strings.CutPrefix(header, "Bearer ")
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

// Middleware validates the bearer token (header or ?token=) against hmacSecret.
func Middleware(hmacSecret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := requestToken(r)
		if tokenStr == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			return hmacSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			log.Debug("Rejected token", "remote", r.RemoteAddr, "err", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			log.Debug("Token without subject", "remote", r.RemoteAddr, "err", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxSubjectKey{}, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
