package toolexecutor

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/harun/toolgate/internal/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternalTokenSigner(t *testing.T) {
	_, err := NewInternalTokenSigner("", "", 0)
	assert.Error(t, err)

	signer := newTestSigner(t)
	token, err := signer.Sign()
	require.NoError(t, err)
	assert.NoError(t, signer.Verify(token))

	t.Run("tampered payload", func(t *testing.T) {
		encoded, sig, _ := strings.Cut(token, ".")
		assert.Error(t, signer.Verify(encoded+"x."+sig))
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewInternalTokenSigner("another-secret-another-secret-xx", "", time.Minute)
		require.NoError(t, err)
		assert.Error(t, other.Verify(token))
	})

	t.Run("malformed", func(t *testing.T) {
		assert.Error(t, signer.Verify("no-dot"))
		assert.Error(t, signer.Verify(""))
	})

	t.Run("expired", func(t *testing.T) {
		now := time.Now()
		signer.now = func() time.Time { return now.Add(2 * time.Minute) }
		defer func() { signer.now = time.Now }()
		assert.EqualError(t, signer.Verify(token), "internal token expired")
	})
}

func TestAttachInternalToken(t *testing.T) {
	ctx := tracing.WithRequestID(context.Background(), "req-1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://host/api/x", nil)
	require.NoError(t, err)
	require.NoError(t, attachInternalToken(req, nil))
	assert.Equal(t, "req-1", req.Header.Get(tracing.RequestIDHeader))
	assert.Empty(t, req.Header.Get("Authorization"))

	signer := newTestSigner(t)
	require.NoError(t, attachInternalToken(req, signer))
	auth := req.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "Bearer "))
	assert.NoError(t, signer.Verify(strings.TrimPrefix(auth, "Bearer ")))
}
