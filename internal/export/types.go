// Package export renders outgoing letters to PDF via headless Chrome.
package export

import "errors"

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates the headless Chrome runtime is not installed.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
