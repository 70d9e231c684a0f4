package pdfops

import (
	"fmt"

	"github.com/local/pdftoolbox/internal/pagerange"
)

// InputError represents a missing, empty or non-PDF input buffer
type InputError struct {
	Name   string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid input %s: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func (e *InputError) Unwrap() error { return e.Err }

// ParseError is returned for a malformed page range token.
type ParseError = pagerange.ParseError

// AssemblyError represents a failure to build an output document from page indices
type AssemblyError struct {
	Index int
	Pages int
	Err   error
}

func (e *AssemblyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("page %d out of range (document has %d pages)", e.Index+1, e.Pages)
	}
	return fmt.Sprintf("failed to assemble document: %v", e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// CollectionError represents an unreadable source during the image walk
type CollectionError struct {
	Err error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("failed to collect images: %v", e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// EncodingError represents a failed re-encode of one image
type EncodingError struct {
	Index  int
	Format string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to encode image %d as %s: %v", e.Index+1, e.Format, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ArchiveError represents an archive that could not be written or would be empty
type ArchiveError struct {
	Entry  string
	Reason string
	Err    error
}

func (e *ArchiveError) Error() string {
	msg := "archive error"
	if e.Entry != "" {
		msg += " at " + e.Entry
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArchiveError) Unwrap() error { return e.Err }
