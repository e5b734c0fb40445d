package index

import (
	"context"

	"github.com/kailas-cloud/paperrag/internal/domain/snapshot"
)

// SnapshotRepository persists index generations.
type SnapshotRepository interface {
	Save(ctx context.Context, name string, s snapshot.Snapshot) error
	Load(ctx context.Context, name string) (snapshot.Snapshot, error)
	Delete(ctx context.Context, name string) error
}
