package batches

import (
	"context"
	"time"
)

// Repo persists batches and their results.
type Repo interface {
	Create(ctx context.Context, batch Batch) error
	Get(ctx context.Context, id string) (Batch, error)
	// MarkDelivery records a later delivery attempt on one stored result.
	MarkDelivery(ctx context.Context, batchID string, index int, update DeliveryUpdate) error
}

// DeliveryUpdate is the outcome of a resend.
type DeliveryUpdate struct {
	Sent      bool
	MessageID string
	Error     string
	At        time.Time
}

// applyDelivery folds a resend outcome into a stored result. A failed
// attempt never clears an earlier successful delivery. A successful attempt
// clears a failure that happened at the delivery stage, which is the only
// stage that leaves files behind.
func applyDelivery(r *Result, u DeliveryUpdate) {
	r.UpdatedAt = u.At
	if !u.Sent {
		r.EmailError = u.Error
		return
	}
	r.EmailSent = true
	r.MessageID = u.MessageID
	r.EmailError = ""
	if r.Status == StatusError && r.Files != nil {
		r.Status = StatusSuccess
		r.Error = ""
	}
}
