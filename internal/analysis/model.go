package analysis

import "time"

// Job statuses. The pipeline walks them in order; completed and error are
// terminal.
const (
	StatusCreated       = "created"
	StatusCleaning      = "cleaning"
	StatusExtracting    = "extracting"
	StatusVerifying     = "verifying"
	StatusRetrieving    = "retrieving"
	StatusComparing     = "comparing"
	StatusIdentityCheck = "identity_check"
	StatusSynthesizing  = "synthesizing"
	StatusCompleted     = "completed"
	StatusError         = "error"
)

// Human-readable step labels shown to pollers.
const (
	StepCreated       = "Queued"
	StepCleaning      = "Cleaning transcript"
	StepExtracting    = "Extracting recommended stocks"
	StepVerifying     = "Verifying stock financials"
	StepRetrieving    = "Searching disclosure filings"
	StepComparing     = "Comparing claims over time"
	StepIdentityCheck = "Verifying uploader identity"
	StepSynthesizing  = "Writing credibility report"
	StepCompleted     = "Completed"
	StepError         = "Failed"
)

// Fixed progress checkpoints, set before each stage's work runs.
const (
	ProgressCleaning      = 5
	ProgressExtracting    = 10
	ProgressVerifying     = 30
	ProgressRetrieving    = 50
	ProgressComparing     = 70
	ProgressIdentityCheck = 80
	ProgressSynthesizing  = 90
	ProgressCompleted     = 100
)

// Job represents one video credibility analysis and its lifecycle record.
type Job struct {
	ID            string     `json:"id"`
	Script        string     `json:"-"`
	UploadDate    time.Time  `json:"uploadDate"`
	ChannelName   string     `json:"channelName"`
	ChannelHandle string     `json:"channelHandle,omitempty"`
	ChannelID     string     `json:"channelId,omitempty"`
	Status        string     `json:"status"`
	Step          string     `json:"step"`
	Progress      int        `json:"progress"`
	Result        *Report    `json:"result,omitempty"`
	ErrorMessage  *string    `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}
