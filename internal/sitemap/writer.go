package sitemap

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteMode selects how WriteFile treats an existing file.
type WriteMode int

const (
	// ModeOverwrite replaces any existing file.
	ModeOverwrite WriteMode = iota
	// ModeAppend adds the document after the existing content. Two
	// documents in one file are not a valid sitemap; the mode exists for
	// callers that post-process the output themselves.
	ModeAppend
)

// String returns the mode name.
func (m WriteMode) String() string {
	switch m {
	case ModeOverwrite:
		return "overwrite"
	case ModeAppend:
		return "append"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// WriteFile stores doc at path and returns the number of bytes written.
// Missing parent directories are created. Any failure is reported as a
// *WriteError.
func WriteFile(path string, doc []byte, mode WriteMode) (int, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, &WriteError{Path: path, Err: err}
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	switch mode {
	case ModeAppend:
		flags |= os.O_APPEND
	default:
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // output path is chosen by the user
	if err != nil {
		return 0, &WriteError{Path: path, Err: err}
	}

	n, err := f.Write(doc)
	if err != nil {
		_ = f.Close()
		return n, &WriteError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return n, &WriteError{Path: path, Err: err}
	}
	return n, nil
}
