package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fernandoirangph/pms-i/internal/cart"
	"github.com/shopspring/decimal"
)

// EventStore is the slice of the repository the recorder needs.
type EventStore interface {
	AppendEvent(ctx context.Context, aggregateID, eventType string, payload json.RawMessage) error
}

// Recorder appends a CartCheckedOut event for every completed
// checkout. It plugs into the cart service as its CheckoutRecorder.
type Recorder struct {
	store EventStore
}

func NewRecorder(store EventStore) *Recorder {
	return &Recorder{store: store}
}

type checkoutPayload struct {
	CartID     string          `json:"cart_id"`
	UserID     string          `json:"user_id"`
	Lines      []cart.Line     `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	CheckoutAt *time.Time      `json:"checkout_at"`
}

func (r *Recorder) RecordCheckout(ctx context.Context, c *cart.Cart) error {
	payload, err := json.Marshal(checkoutPayload{
		CartID:     c.ID,
		UserID:     c.UserID,
		Lines:      c.Lines,
		Total:      c.Total(),
		CheckoutAt: c.CheckoutAt,
	})
	if err != nil {
		return fmt.Errorf("marshal checkout payload: %w", err)
	}

	if err := r.store.AppendEvent(ctx, c.ID, EventTypeCartCheckedOut, payload); err != nil {
		return fmt.Errorf("append checkout event: %w", err)
	}
	return nil
}
