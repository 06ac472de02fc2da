package etcd

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"table-lock/internal/domain"
)

func sessionTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionManagerNormalizesNamespace(t *testing.T) {
	cases := map[string]string{
		"":                      DefaultNamespace,
		"locks":                 "/locks",
		"/locks/":               "/locks",
		"/table-lock/locks":     "/table-lock/locks",
		"table-lock/locks///":   "/table-lock/locks",
	}

	for raw, want := range cases {
		m := NewSessionManager(nil, time.Second, DefaultSessionTTL, raw, sessionTestLogger())
		assert.Equal(t, want, m.Namespace(), "namespace %q", raw)
	}
}

func TestSessionManagerUnconnected(t *testing.T) {
	m := NewSessionManager(nil, time.Second, DefaultSessionTTL, "", sessionTestLogger())

	_, err := m.Session()
	assert.ErrorIs(t, err, domain.ErrSessionClosed)

	_, err = m.Client()
	assert.ErrorIs(t, err, domain.ErrSessionClosed)

	assert.NoError(t, m.Close(), "closing an unconnected manager is a no-op")
}

func TestSessionManagerDefaultsTTL(t *testing.T) {
	m := NewSessionManager(nil, time.Second, 0, "", sessionTestLogger())
	assert.Equal(t, DefaultSessionTTL, m.sessionTTL)
}
