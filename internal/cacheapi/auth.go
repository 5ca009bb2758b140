package cacheapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ctxKey namespaces values this package stores on a request's context.
type ctxKey int

const (
	ctxOwner ctxKey = iota
)

// issueToken returns a bearer JWT for owner, signed with secret and valid
// for one hour. There is no server-side revocation list: requireAuth checks
// only the token itself, and the owner's API key is checked only at /login,
// so replacing a key does not invalidate tokens already issued.
func issueToken(owner string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"iss": "gentabctl-cacheapi",
		"sub": owner,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return tok.SignedString(secret)
}

func parseOwnerFromToken(tokStr string, secret []byte) (string, error) {
	tok, err := jwt.Parse(tokStr, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithIssuer("gentabctl-cacheapi"), jwt.WithLeeway(time.Minute))
	if err != nil {
		return "", err
	}
	return tok.Claims.GetSubject()
}

func getBearerToken(req *http.Request) (string, error) {
	authHeader := strings.TrimSpace(req.Header.Get("Authorization"))
	if authHeader == "" {
		return "", fmt.Errorf("no authorization header present")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(strings.TrimSpace(parts[0])) != "bearer" {
		return "", fmt.Errorf("authorization header not in Bearer format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// requireAuth is middleware (in the teacher's AuthHandler-wraps-next shape)
// that rejects any request without a valid bearer JWT, and on success stores
// the token subject's owner name under ctxOwner for handlers to read.
func requireAuth(secret []byte, unauthDelay time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			tok, err := getBearerToken(req)
			if err != nil {
				r := unauthorized("", err.Error())
				time.Sleep(unauthDelay)
				r.writeResponse(w, req)
				return
			}

			owner, err := parseOwnerFromToken(tok, secret)
			if err != nil {
				r := unauthorized("", err.Error())
				time.Sleep(unauthDelay)
				r.writeResponse(w, req)
				return
			}

			ctx := context.WithValue(req.Context(), ctxOwner, owner)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func ownerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ctxOwner).(string)
	return owner, ok
}

// hashAPIKey and checkAPIKey wrap bcrypt for the API key credential stored
// in Store.CreateAPIKey/GetAPIKeyByOwner.
func hashAPIKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func checkAPIKey(hash, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}
