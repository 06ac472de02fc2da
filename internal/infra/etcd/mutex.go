package etcd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"table-lock/internal/domain"
)

// node is one outstanding acquisition attempt registered under a lock's
// prefix. seq is the service-assigned creation revision, strictly increasing
// per namespace, which plays the role of the sequential suffix.
type node struct {
	key string
	seq int64
}

// nodeRegistry is the create/list/delete surface of the coordination
// service. It is an interface so the ordering comparison can be tested
// without a live ensemble and so a watch-based wait can replace the polling
// check later without touching the backend contract.
type nodeRegistry interface {
	// createNode registers a new ephemeral node under prefix and returns it.
	createNode(ctx context.Context, prefix string) (node, error)
	// listNodes returns every node currently registered under prefix, in no
	// particular order.
	listNodes(ctx context.Context, prefix string) ([]node, error)
	// deleteNode removes the node with the given key. Deleting a node that
	// is already gone is not an error.
	deleteNode(ctx context.Context, key string) error
}

// sessionRegistry implements nodeRegistry against the shared coordination
// session. Nodes are written under the session lease, so they vanish when
// the holder's session expires.
type sessionRegistry struct {
	manager *SessionManager
}

func (r *sessionRegistry) createNode(ctx context.Context, prefix string) (node, error) {
	session, err := r.manager.Session()
	if err != nil {
		return node{}, err
	}
	client, err := r.manager.Client()
	if err != nil {
		return node{}, err
	}

	key := prefix + uuid.NewString()
	resp, err := client.Put(ctx, key, "", clientv3.WithLease(session.Lease()))
	if err != nil {
		return node{}, fmt.Errorf("failed to create lock node %s: %w", key, err)
	}
	// The store revision at which a fresh key is written is its creation
	// revision.
	return node{key: key, seq: resp.Header.Revision}, nil
}

func (r *sessionRegistry) listNodes(ctx context.Context, prefix string) ([]node, error) {
	client, err := r.manager.Client()
	if err != nil {
		return nil, err
	}

	resp, err := client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list lock nodes under %s: %w", prefix, err)
	}

	nodes := make([]node, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		nodes = append(nodes, node{key: string(kv.Key), seq: kv.CreateRevision})
	}
	return nodes, nil
}

func (r *sessionRegistry) deleteNode(ctx context.Context, key string) error {
	client, err := r.manager.Client()
	if err != nil {
		return err
	}
	if _, err := client.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete lock node %s: %w", key, err)
	}
	return nil
}

// mutexBackend implements domain.Backend over the coordination service.
// Every attempt registers an ephemeral node under the lock's own prefix; the
// attempt whose node is oldest wins. A losing attempt deletes its node
// immediately so failed tries never accumulate.
type mutexBackend struct {
	lockName string
	prefix   string
	registry nodeRegistry
	logger   *slog.Logger
	tracer   trace.Tracer

	nodeKey string
}

// NewMutexBackend creates a coordination-mutex backend for lockName using
// the shared session manager. Each lock name gets its own prefix, so
// ordering never compares nodes of unrelated locks.
func NewMutexBackend(manager *SessionManager, lockName string, logger *slog.Logger) domain.Backend {
	return &mutexBackend{
		lockName: lockName,
		prefix:   manager.Namespace() + "/" + lockName + "/",
		registry: &sessionRegistry{manager: manager},
		logger:   logger.With("component", "coordination-mutex", "lock_name", lockName),
		tracer:   otel.Tracer("table-lock-coordination"),
	}
}

// TryAcquire registers a node, lists the competitors under the lock prefix
// and wins only if its own node is the oldest. There is no watch on the
// predecessor; a busy lock is rediscovered by the caller's next poll.
func (b *mutexBackend) TryAcquire(ctx context.Context) domain.Outcome {
	ctx, span := b.tracer.Start(ctx, "coordination.TryAcquire",
		trace.WithAttributes(attribute.String("lock.name", b.lockName)))
	defer span.End()

	own, err := b.registry.createNode(ctx, b.prefix)
	if err != nil {
		span.SetStatus(codes.Error, "create node failed")
		span.RecordError(err)
		if errors.Is(err, domain.ErrSessionClosed) {
			b.logger.Error("no coordination session, cannot attempt lock")
			return domain.BackendUnavailable
		}
		b.logger.Error("failed to create lock node", "error", err)
		return domain.ProtocolError
	}
	span.SetAttributes(attribute.String("lock.node", own.key))

	nodes, err := b.registry.listNodes(ctx, b.prefix)
	if err != nil {
		span.SetStatus(codes.Error, "list nodes failed")
		span.RecordError(err)
		b.logger.Error("failed to list lock nodes", "error", err)
		// Drop the node we just registered so the failed attempt does not
		// block later competitors until the session expires.
		_ = b.registry.deleteNode(ctx, own.key)
		return domain.ProtocolError
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].seq != nodes[j].seq {
			return nodes[i].seq < nodes[j].seq
		}
		return nodes[i].key < nodes[j].key
	})

	if len(nodes) > 0 && nodes[0].key == own.key {
		b.nodeKey = own.key
		return domain.Acquired
	}

	if err := b.registry.deleteNode(ctx, own.key); err != nil {
		b.logger.Warn("failed to delete losing lock node", "node", own.key, "error", err)
	}
	return domain.Busy
}

// Release deletes the held node. A node that already vanished, for example
// because the session expired, releases as a no-op.
func (b *mutexBackend) Release(ctx context.Context) error {
	if b.nodeKey == "" {
		return domain.ErrNotHeld
	}
	key := b.nodeKey
	b.nodeKey = ""

	if err := b.registry.deleteNode(ctx, key); err != nil {
		return err
	}
	return nil
}
