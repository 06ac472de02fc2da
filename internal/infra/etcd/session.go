package etcd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"table-lock/internal/domain"
)

const (
	// DefaultNamespace is the prefix under which all lock nodes live.
	DefaultNamespace = "/table-lock/locks"
	// DefaultSessionTTL bounds how long a crashed holder's nodes survive.
	DefaultSessionTTL = 10 * time.Second
)

// SessionManager owns the single process-wide coordination session that every
// coordination-mutex backend shares. It is constructed once by the
// composition root and connected explicitly; connection failures surface from
// Connect instead of being deferred to the first lock attempt.
type SessionManager struct {
	endpoints   []string
	dialTimeout time.Duration
	sessionTTL  time.Duration
	namespace   string
	logger      *slog.Logger

	mu      sync.RWMutex
	client  *clientv3.Client
	session *concurrency.Session
}

// NewSessionManager creates an unconnected session manager. The namespace is
// normalized to a rooted prefix without a trailing slash.
func NewSessionManager(endpoints []string, dialTimeout, sessionTTL time.Duration, namespace string, logger *slog.Logger) *SessionManager {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if !strings.HasPrefix(namespace, "/") {
		namespace = "/" + namespace
	}
	namespace = strings.TrimRight(namespace, "/")
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}

	return &SessionManager{
		endpoints:   endpoints,
		dialTimeout: dialTimeout,
		sessionTTL:  sessionTTL,
		namespace:   namespace,
		logger:      logger.With("component", "coordination-session"),
	}
}

// Connect establishes the client connection and the leased session. Nodes
// created under the session are removed by the service when the session
// expires, which is what cleans up after a crashed holder. Connect is
// idempotent; a second call on a live manager is a no-op.
func (m *SessionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil
	}

	cli, err := NewClient(m.endpoints, m.dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to create coordination client: %w", err)
	}

	// Probe the namespace so a wrong endpoint fails here, loudly, instead of
	// on the first lock attempt.
	probeCtx, cancel := context.WithTimeout(ctx, m.dialTimeout)
	defer cancel()
	if _, err := cli.Get(probeCtx, m.namespace, clientv3.WithPrefix(), clientv3.WithCountOnly()); err != nil {
		_ = cli.Close()
		return fmt.Errorf("failed to reach coordination namespace %s: %w", m.namespace, err)
	}

	session, err := concurrency.NewSession(cli, concurrency.WithTTL(int(m.sessionTTL.Seconds())))
	if err != nil {
		_ = cli.Close()
		return fmt.Errorf("failed to create coordination session: %w", err)
	}

	m.client = cli
	m.session = session
	m.logger.Info("coordination session established",
		"namespace", m.namespace, "ttl", m.sessionTTL.String())

	go m.watchSession(session)
	return nil
}

// watchSession logs the session-lost transition. Losing the session means
// every node created under it is gone and held coordination locks are no
// longer protected.
func (m *SessionManager) watchSession(session *concurrency.Session) {
	<-session.Done()
	m.logger.Warn("coordination session lost, ephemeral lock nodes have been removed")
}

// Session returns the live session, or ErrSessionClosed when the manager was
// never connected or has been closed.
func (m *SessionManager) Session() (*concurrency.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, domain.ErrSessionClosed
	}
	return m.session, nil
}

// Client returns the underlying connection, or ErrSessionClosed when not
// connected.
func (m *SessionManager) Client() (*clientv3.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, domain.ErrSessionClosed
	}
	return m.client, nil
}

// Namespace returns the normalized root prefix for lock nodes.
func (m *SessionManager) Namespace() string {
	return m.namespace
}

// Close revokes the session lease and closes the connection. Any nodes still
// held under the session are deleted by the service when the lease goes.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}

	sessionErr := m.session.Close()
	clientErr := m.client.Close()
	m.session = nil
	m.client = nil

	if sessionErr != nil {
		return fmt.Errorf("failed to close coordination session: %w", sessionErr)
	}
	if clientErr != nil {
		return fmt.Errorf("failed to close coordination client: %w", clientErr)
	}
	m.logger.Info("coordination session closed")
	return nil
}
