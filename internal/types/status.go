package types

// Status is the record status of a row. Deleted rows are kept and filtered out of reads.
type Status string

const (
	StatusPublished Status = "published"
	StatusDeleted   Status = "deleted"
)
