package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/harun/toolgate/pkg/toolexecutor"
)

// Authenticator accepts either the shared secret or a valid internal token as
// a bearer credential. With neither configured every request is accepted.
type Authenticator struct {
	sharedSecret string
	signer       *toolexecutor.InternalTokenSigner
}

// NewAuthenticator creates an authenticator. Both arguments are optional.
func NewAuthenticator(sharedSecret string, signer *toolexecutor.InternalTokenSigner) *Authenticator {
	return &Authenticator{
		sharedSecret: sharedSecret,
		signer:       signer,
	}
}

// Enabled reports whether requests need a credential
func (a *Authenticator) Enabled() bool {
	return a.sharedSecret != "" || a.signer != nil
}

// Authenticate checks the request's bearer token. Browsers cannot set headers
// on a websocket upgrade, so a token query parameter is also read.
func (a *Authenticator) Authenticate(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return false
	}

	if a.sharedSecret != "" && subtle.ConstantTimeCompare([]byte(a.sharedSecret), []byte(token)) == 1 {
		return true
	}
	if a.signer != nil && a.signer.Verify(token) == nil {
		return true
	}
	return false
}

// Middleware rejects unauthenticated requests with 401
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authenticate(r) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
