// Package clusterlock enforces the invariant that two concurrent cluster
// actions on the same cluster_id are rejected (§3.6, §6.5): Terraform
// state locking is delegated to the backend (e.g. DynamoDB) per §5's
// "Shared resources", but the decision to reject a second concurrent
// *action* on the same cluster is the orchestrator's own, implemented
// here as a Redis-backed per-cluster lock, mirroring the retrieval pack's
// cache usage for cross-process coordination.
package clusterlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deployforge/engine/pkg/engineerror"
	"github.com/deployforge/engine/pkg/events"
	"github.com/deployforge/engine/pkg/ids"
)

const lockKeyPrefix = "deployforge:cluster-lock:"

// DefaultLeaseDuration bounds how long a lock survives if the holder
// crashes without releasing it.
const DefaultLeaseDuration = 2 * time.Hour

// Locker guards per-cluster exclusive access.
type Locker struct {
	client *redis.Client
}

func New(addr string) *Locker {
	return &Locker{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func NewFromClient(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Lease represents one successfully acquired lock; callers must Release
// it (typically deferred) once their action completes.
type Lease struct {
	locker  *Locker
	key     string
	token   string
}

// Acquire attempts to take the lock for clusterID. It returns an
// engineerror.ConcurrentClusterActionRejected if another action already
// holds it.
func Acquire(ctx context.Context, locker *Locker, details events.EventDetails, clusterID ids.ClusterID, token string) (*Lease, error) {
	key := lockKeyPrefix + clusterID.String()
	ok, err := locker.client.SetNX(ctx, key, token, DefaultLeaseDuration).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring cluster lock: %w", err)
	}
	if !ok {
		return nil, engineerror.ConcurrentClusterActionRejected(details)
	}
	return &Lease{locker: locker, key: key, token: token}, nil
}

// Release drops the lease, but only if it is still the current holder —
// a lease whose lease duration already expired and was reacquired by
// another action must not be released out from under it.
func (l *Lease) Release(ctx context.Context) error {
	current, err := l.locker.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("releasing cluster lock: %w", err)
	}
	if current != l.token {
		return nil
	}
	return l.locker.client.Del(ctx, l.key).Err()
}
