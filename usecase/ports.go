package usecase

import (
	"context"

	"github.com/fastygo/questboard/domain"
)

// ReferenceCache abstracts the static reference dataset so use cases stay storage-agnostic.
type ReferenceCache interface {
	Load(ctx context.Context) (*domain.Content, error)
	Fresh() bool
	Reconcile(raw []byte) (changed bool, err error)
}

// SnapshotArchive keeps committed snapshots and the raw records they were built from.
type SnapshotArchive interface {
	Save(snap *domain.Snapshot, raw map[string][]byte) error
	Latest() (*domain.Snapshot, error)
	Raw(dataset string) ([]byte, error)
}
