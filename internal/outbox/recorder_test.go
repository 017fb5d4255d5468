package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fernandoirangph/pms-i/internal/cart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEventStore struct {
	aggregateID string
	eventType   string
	payload     json.RawMessage
	err         error
}

func (m *mockEventStore) AppendEvent(_ context.Context, aggregateID, eventType string, payload json.RawMessage) error {
	if m.err != nil {
		return m.err
	}
	m.aggregateID = aggregateID
	m.eventType = eventType
	m.payload = payload
	return nil
}

func TestRecorder_AppendsCheckoutEvent(t *testing.T) {
	store := &mockEventStore{}
	rec := NewRecorder(store)

	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	c := &cart.Cart{
		ID:         "cart-123",
		UserID:     "user-456",
		CheckedOut: true,
		CheckoutAt: &at,
		Lines: []cart.Line{
			{
				ID:        "line-1",
				ProductID: 1,
				Quantity:  2,
				UnitPrice: decimal.RequireFromString("19.99"),
				LineTotal: decimal.RequireFromString("39.98"),
			},
		},
	}

	require.NoError(t, rec.RecordCheckout(context.Background(), c))

	assert.Equal(t, "cart-123", store.aggregateID)
	assert.Equal(t, EventTypeCartCheckedOut, store.eventType)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(store.payload, &payload))
	assert.Equal(t, "cart-123", payload["cart_id"])
	assert.Equal(t, "user-456", payload["user_id"])
	assert.Equal(t, "39.98", payload["total"])
}

func TestRecorder_PropagatesStoreError(t *testing.T) {
	store := &mockEventStore{err: errors.New("connection refused")}
	rec := NewRecorder(store)

	err := rec.RecordCheckout(context.Background(), &cart.Cart{ID: "cart-1"})
	assert.Error(t, err)
}
