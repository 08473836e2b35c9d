package models

import "time"

const (
	// DailyChargesWorkflowName is the registered name of the daily charges workflow
	DailyChargesWorkflowName = "DailyChargesWorkflow"

	// RunRecurringChargesActivityName is the registered name of the charge run activity
	RunRecurringChargesActivityName = "RunRecurringCharges"

	// DailyChargesScheduleID is fixed so that re-deploys find the existing schedule
	DailyChargesScheduleID = "ledger-daily-charges"

	// DailyChargesWorkflowIDPrefix prefixes the id of every scheduled run
	DailyChargesWorkflowIDPrefix = "daily-charges"
)

// DailyChargesWorkflowInput selects the day to bill through. Empty means today in the
// billing timezone, resolved when the activity runs.
type DailyChargesWorkflowInput struct {
	AsOf string `json:"as_of,omitempty"`
}

// DailyChargesWorkflowResult is the part of the run summary kept in workflow history
type DailyChargesWorkflowResult struct {
	RunID          string    `json:"run_id"`
	AsOf           string    `json:"as_of"`
	StaysProcessed int       `json:"stays_processed"`
	ItemsCreated   int       `json:"items_created"`
	AlreadyBilled  int       `json:"already_billed"`
	Skipped        int       `json:"skipped"`
	Failures       int       `json:"failures"`
	Fatal          bool      `json:"fatal"`
	FinishedAt     time.Time `json:"finished_at"`
}
