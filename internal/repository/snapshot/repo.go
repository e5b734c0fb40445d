package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/paperrag/internal/db"
	"github.com/kailas-cloud/paperrag/internal/domain"
	domsnap "github.com/kailas-cloud/paperrag/internal/domain/snapshot"
)

// store is the consumer interface for snapshots (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Repo persists index snapshots, one value per index name.
type Repo struct {
	store  store
	prefix string
}

// New creates a snapshot repository. keyPrefix namespaces the keys (e.g. "paperrag:").
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix + "snapshot:"}
}

// Save overwrites the snapshot stored under name.
func (r *Repo) Save(ctx context.Context, name string, s domsnap.Snapshot) error {
	data, err := json.Marshal(toDTO(s))
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.store.Set(ctx, r.key(name), data); err != nil {
		return fmt.Errorf("set %s: %w", r.key(name), err)
	}
	return nil
}

// Load returns the snapshot stored under name, domain.ErrNotFound if none exists.
func (r *Repo) Load(ctx context.Context, name string) (domsnap.Snapshot, error) {
	data, err := r.store.Get(ctx, r.key(name))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsnap.Snapshot{}, fmt.Errorf("snapshot %q: %w", name, domain.ErrNotFound)
		}
		return domsnap.Snapshot{}, fmt.Errorf("get %s: %w", r.key(name), err)
	}

	var dto snapshotDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return domsnap.Snapshot{}, fmt.Errorf("unmarshal snapshot %q: %w", name, err)
	}
	if dto.Format != formatVersion {
		return domsnap.Snapshot{}, fmt.Errorf(
			"snapshot %q has format %d, want %d: %w", name, dto.Format, formatVersion, domain.ErrIndexVersionMismatch,
		)
	}
	return fromDTO(dto), nil
}

// Delete removes the snapshot stored under name.
func (r *Repo) Delete(ctx context.Context, name string) error {
	if err := r.store.Del(ctx, r.key(name)); err != nil {
		return fmt.Errorf("del %s: %w", r.key(name), err)
	}
	return nil
}

func (r *Repo) key(name string) string { return r.prefix + name }
