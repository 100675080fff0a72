package api

import "strings"

// ResponseType selects how a response body is decoded.
type ResponseType string

const (
	// TypeJSON decodes the body as JSON (the default).
	TypeJSON ResponseType = "json"
	// TypeBlob returns the body as raw bytes.
	TypeBlob ResponseType = "blob"
	// TypeText returns the body as a string.
	TypeText ResponseType = "text"
)

// extTypes maps a path's file extension to a decode strategy. Callers
// elsewhere depend on this exact table; extend it only together with the
// backend.
var extTypes = map[string]ResponseType{
	"json": TypeJSON,

	"zip":  TypeBlob,
	"png":  TypeBlob,
	"jpg":  TypeBlob,
	"jpeg": TypeBlob,
	"gif":  TypeBlob,
	"pdf":  TypeBlob,
	"xlsx": TypeBlob,

	"txt":  TypeText,
	"csv":  TypeText,
	"log":  TypeText,
	"html": TypeText,
	"md":   TypeText,
}

// InferResponseType derives the decode strategy from a request path's
// file extension, ignoring any query string. Unrecognized or missing
// extensions default to JSON.
func InferResponseType(path string) ResponseType {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	ext := path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		ext = path[i+1:]
	}
	if t, ok := extTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return TypeJSON
}
