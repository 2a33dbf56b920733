package constants

// JobStatus is the canonical status for an extraction job.
type JobStatus string

// Stable values (store these exact strings in the progress table).
const (
	JobStatusQueued      JobStatus = "QUEUED"
	JobStatusRunning     JobStatus = "RUNNING"
	JobStatusSummarizing JobStatus = "SUMMARIZING"
	JobStatusDone        JobStatus = "DONE"
	JobStatusFailed      JobStatus = "FAILED"
)

// Stage progress markers reported for every job.
const (
	ProgressStarted    = 10
	ProgressExtracting = 20
	ProgressExtracted  = 80
	ProgressSummarize  = 90
	ProgressDone       = 100
)

const (
	MsgStarted    = "Starting extraction"
	MsgExtracting = "Extracting content"
	MsgExtracted  = "Extraction complete"
	MsgSummarize  = "Summarizing"
	MsgDone       = "Done"
)
