package batches

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Batch
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Batch)}
}

// Create stores a batch, replacing any batch with the same ID.
func (r *MemoryRepo) Create(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[batch.ID] = cloneBatch(batch)
	return nil
}

// Get returns a copy of the stored batch.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.data[id]
	if !ok {
		return Batch{}, ErrNotFound
	}
	return cloneBatch(batch), nil
}

// MarkDelivery updates one result in place.
func (r *MemoryRepo) MarkDelivery(ctx context.Context, batchID string, index int, update DeliveryUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.data[batchID]
	if !ok || index < 0 || index >= len(batch.Results) {
		return ErrNotFound
	}
	applyDelivery(&batch.Results[index], update)
	r.data[batchID] = batch
	return nil
}

func cloneBatch(b Batch) Batch {
	out := b
	out.Results = make([]Result, len(b.Results))
	for i, res := range b.Results {
		if res.Files != nil {
			files := *res.Files
			res.Files = &files
		}
		out.Results[i] = res
	}
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
