package publisher

import (
	"time"

	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
)

// LedgerEvent is emitted once the transaction that caused it has committed
type LedgerEvent struct {
	ID         string                `json:"id"`
	Type       types.LedgerEventType `json:"type"`
	InvoiceID  string                `json:"invoice_id,omitempty"`
	SubjectKey string                `json:"subject_key,omitempty"`
	Amount     decimal.Decimal       `json:"amount"`
	OccurredAt time.Time             `json:"occurred_at"`
	Payload    map[string]any        `json:"payload,omitempty"`
}

// NewLedgerEvent stamps a fresh id and the current time
func NewLedgerEvent(eventType types.LedgerEventType, invoiceID, subjectKey string, amount decimal.Decimal) *LedgerEvent {
	return &LedgerEvent{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LEDGER_EVENT),
		Type:       eventType,
		InvoiceID:  invoiceID,
		SubjectKey: subjectKey,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
}

// With attaches a payload field
func (e *LedgerEvent) With(key string, value any) *LedgerEvent {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}
