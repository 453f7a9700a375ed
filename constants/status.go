package constants

// JobStatus is the canonical status for rows in extract_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued  JobStatus = "QUEUED"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusTextOK  JobStatus = "TEXT_OK" // text acquired
	JobStatusDone    JobStatus = "DONE"    // record assembled and stored
	JobStatusFailed  JobStatus = "FAILED"
)

// Extraction methods recorded on ExtractedText and extract jobs.
const (
	MethodDirectText = "direct-text"
	MethodLayout     = "layout"
	MethodOCR        = "ocr"
	MethodNone       = "none"
)
