package model

// Report lifecycle statuses as reported by the backend.
const (
	ReportStarted   = "started"
	ReportCompleted = "completed"
	ReportError     = "error"
)

// Report is a single analysis run and its results entry.
type Report struct {
	ID            string   `json:"id"`
	UserID        string   `json:"user_id"`
	Product       string   `json:"product"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	InputFiles    []string `json:"input_files"`
	StartDatetime int64    `json:"start_datetime"` // epoch millis
	EndDatetime   int64    `json:"end_datetime,omitempty"`
}

// Done reports whether the run has reached a terminal status.
func (r *Report) Done() bool {
	return r.Status == ReportCompleted || r.Status == ReportError
}

// RunRequest submits an analysis job. ID is client-generated (see
// api.NewTimestampID) so the submission can be referenced before the
// server persists it.
type RunRequest struct {
	ID             string   `json:"id"`
	Product        string   `json:"product"`
	BioInterpreter bool     `json:"bio_interpreter"`
	Title          string   `json:"title"`
	UserID         string   `json:"user_id"`
	InputFiles     []string `json:"input_files"`
	OutputDir      string   `json:"output_dir"`
}
