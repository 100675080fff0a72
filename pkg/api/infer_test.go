package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferResponseType(t *testing.T) {
	tests := []struct {
		path string
		want ResponseType
	}{
		{"/report/abc-output.zip", TypeBlob},
		{"/report-path/u1/work/r1/flux.png", TypeBlob},
		{"/files/photo.JPG", TypeBlob},
		{"/files/photo.jpeg", TypeBlob},
		{"/files/anim.gif", TypeBlob},
		{"/files/doc.pdf", TypeBlob},
		{"/inputs/input-1.xlsx", TypeBlob},

		{"/report-path/u1/work/r1/summary.md", TypeText},
		{"/files/data.csv", TypeText},
		{"/files/run.log", TypeText},
		{"/files/page.html", TypeText},
		{"/files/notes.txt", TypeText},

		{"/files/data.json", TypeJSON},
		{"/users", TypeJSON},
		{"/reports", TypeJSON},
		{"/files/archive.tar", TypeJSON}, // unrecognized extension defaults to JSON
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferResponseType(tt.path), "path %q", tt.path)
	}
}

func TestInferResponseTypeIgnoresQueryString(t *testing.T) {
	assert.Equal(t, TypeBlob, InferResponseType("/report/r1-output.zip?user_id=u1"))
	assert.Equal(t, TypeText, InferResponseType("/files/a.csv?x=1.json"))
	assert.Equal(t, TypeJSON, InferResponseType("/reports?user_id=u1"))
	// The query string must not leak an extension into inference.
	assert.Equal(t, TypeJSON, InferResponseType("/reports?file=a.png"))
}
