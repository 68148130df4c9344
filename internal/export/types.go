// Package export renders a service's set list as a printable chord sheet,
// as standalone HTML or as PDF/DOCX via external tooling.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation.
type Request struct {
	ServiceID string
	Format    Format
	// LyricsOnly strips chords from the output, for prints handed to a
	// congregation rather than the band.
	LyricsOnly bool
}

// ServiceInfo holds the service metadata needed for the sheet header.
type ServiceInfo struct {
	ID          string
	Name        string
	ServiceDate time.Time
	WorkspaceID string
}

// WorkspaceInfo holds workspace metadata.
type WorkspaceInfo struct {
	ID   string
	Name string
}

// SetListSongInfo is one set-list slot with everything needed to render it.
type SetListSongInfo struct {
	SongID        string
	Title         string
	Author        string
	Key           string
	Lyrics        string
	Transposition int
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
