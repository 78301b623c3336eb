package batches

import "time"

// Status is the per-record outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Files names the generated outputs of one record.
type Files struct {
	Docx string `json:"docx"`
	PDF  string `json:"pdf"`
}

// Result is the outcome for one data row. Exactly one exists per record.
type Result struct {
	Index      int       `json:"index"`
	Row        int       `json:"row"`
	To         string    `json:"to"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Files      *Files    `json:"files,omitempty"`
	Error      string    `json:"error,omitempty"`
	EmailSent  bool      `json:"emailSent"`
	MessageID  string    `json:"messageId,omitempty"`
	EmailError string    `json:"emailError,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Batch is one upload and its ordered results.
type Batch struct {
	ID           string
	TemplateName string
	DataName     string
	SkipEmail    bool
	CreatedAt    time.Time
	CompletedAt  *time.Time
	Results      []Result
}

// Counts returns how many results succeeded and failed.
func (b Batch) Counts() (succeeded, failed int) {
	for _, r := range b.Results {
		if r.Status == StatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
