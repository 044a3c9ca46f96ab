package jobstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Store saves and loads manifests by id.
type Store interface {
	Save(ctx context.Context, m *Manifest) error
	Load(ctx context.Context, id uuid.UUID) (*Manifest, error)
}

// validate rejects manifests that cannot be collected.
func validate(m *Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest cannot be nil")
	}
	if m.ID == uuid.Nil {
		return fmt.Errorf("manifest has no id")
	}
	if len(m.Jobs) == 0 {
		return fmt.Errorf("manifest %s has no jobs", m.ID)
	}
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)
