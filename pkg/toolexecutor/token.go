package toolexecutor

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harun/toolgate/internal/tracing"
)

// DefaultInternalTokenTTL bounds the lifetime of service-to-service tokens
const DefaultInternalTokenTTL = 5 * time.Minute

// internalClaims is the signed payload of an internal token
type internalClaims struct {
	Subject  string `json:"sub"`
	IssuedAt int64  `json:"iat"`
	Expires  int64  `json:"exp"`
}

// InternalTokenSigner issues short lived HMAC-SHA256 tokens for calls between
// trusted server processes. It is only configured in server processes.
type InternalTokenSigner struct {
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time
}

// NewInternalTokenSigner creates a signer. A zero ttl uses DefaultInternalTokenTTL.
func NewInternalTokenSigner(secret, subject string, ttl time.Duration) (*InternalTokenSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("internal token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultInternalTokenTTL
	}
	if subject == "" {
		subject = "toolgate"
	}
	return &InternalTokenSigner{
		secret:  []byte(secret),
		subject: subject,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// Sign issues a fresh token
func (s *InternalTokenSigner) Sign() (string, error) {
	now := s.now()
	claims := internalClaims{
		Subject:  s.subject,
		IssuedAt: now.Unix(),
		Expires:  now.Add(s.ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode internal token: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + s.signature(encoded), nil
}

// Verify checks the signature and expiry of a token
func (s *InternalTokenSigner) Verify(token string) error {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return fmt.Errorf("malformed internal token")
	}

	// Use constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(s.signature(encoded)), []byte(sig)) != 1 {
		return fmt.Errorf("invalid internal token signature")
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("malformed internal token payload: %w", err)
	}
	var claims internalClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return fmt.Errorf("malformed internal token claims: %w", err)
	}
	if s.now().Unix() >= claims.Expires {
		return fmt.Errorf("internal token expired")
	}
	return nil
}

func (s *InternalTokenSigner) signature(encoded string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(encoded))
	return hex.EncodeToString(h.Sum(nil))
}

// attachInternalToken prepares a request to the host application: it carries
// the tracing headers and, when running server side, a bearer token. A nil
// signer means a client process, which never attaches one.
func attachInternalToken(req *http.Request, signer *InternalTokenSigner) error {
	tracing.InjectHeaders(req.Context(), req.Header)
	if signer == nil {
		return nil
	}
	token, err := signer.Sign()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
