package types

// LedgerEventType names the events published after a ledger transaction commits
type LedgerEventType string

const (
	EventInvoiceUpdated      LedgerEventType = "invoice.updated"
	EventInvoicePaid         LedgerEventType = "invoice.paid"
	EventInvoiceCancelled    LedgerEventType = "invoice.cancelled"
	EventInvoiceTransferred  LedgerEventType = "invoice.transferred"
	EventPaymentRecorded     LedgerEventType = "payment.recorded"
	EventChargesRunCompleted LedgerEventType = "charges.run_completed"
)
