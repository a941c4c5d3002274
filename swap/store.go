package swap

import (
	"context"

	"github.com/google/uuid"
)

// Store persists swap histories. Save appends the pending changes of a swap
// atomically, rejects them when the stored version moved on, and clears them
// on success. Writes for one swap id are serialized by the store.
type Store interface {
	Save(ctx context.Context, s *Swap) error
	Load(ctx context.Context, id uuid.UUID) (*Swap, error)
}
