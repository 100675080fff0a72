package model

// InputFile describes an uploaded input spreadsheet.
type InputFile struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	UserID     string `json:"user_id"`
	UploadDate int64  `json:"upload_date"` // epoch millis
	Size       int64  `json:"size,omitempty"`
}

// UploadRequest carries an input file to the backend. Data is the
// base64-encoded file content; the whole upload rides a single JSON body.
type UploadRequest struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	UserID     string `json:"user_id"`
	UploadDate int64  `json:"upload_date"`
	Data       string `json:"data"`
}
