package orders

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
	EventStockChanged       = "StockChanged"
)

const EventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id, or variant_id for stock events
	Payload       json.RawMessage `json:"payload"`
}

type LinePayload struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID       string        `json:"order_id"`
	ExternalID    string        `json:"external_id,omitempty"`
	UserID        string        `json:"user_id"`
	Lines         []LinePayload `json:"lines"`
	AdditionalFee string        `json:"additional_fee"`
	TotalPrice    string        `json:"total_price"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type OrderCancelledPayload struct {
	OrderID  string        `json:"order_id"`
	Restored []LinePayload `json:"restored"`
}

// StockChangedPayload carries the availability after a reservation or restoration.
type StockChangedPayload struct {
	VariantID string `json:"variant_id"`
	Delta     int    `json:"delta"`
	Available int    `json:"available"`
	OrderID   string `json:"order_id"`
}

func NewEnvelope(id, eventType, producer, correlationID string, at time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       id,
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

// DecodePayload decodes an envelope payload into its concrete type.
func DecodePayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
