package types

type RunMode string

const (
	// ModeLocal runs the API server and the temporal worker in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server
	ModeAPI RunMode = "api"
	// ModeWorker runs just the temporal worker and registers the daily charges schedule
	ModeWorker RunMode = "worker"
)

// PublisherBackend selects where ledger events go
type PublisherBackend string

const (
	PublisherBackendMemory PublisherBackend = "memory"
	PublisherBackendKafka  PublisherBackend = "kafka"
)
