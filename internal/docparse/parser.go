// Package docparse extracts plain text from uploaded resume and job
// description documents.
package docparse

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// ParseError marks a document that could not be read. Screening treats it as
// a per-file failure, never a batch failure.
type ParseError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Filename, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Filename, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Parser converts document bytes into plain text.
type Parser interface {
	Parse(data []byte, filename string) (string, error)
}

// DocumentParser handles PDF, DOCX and plain-text documents.
type DocumentParser struct{}

// New creates a DocumentParser.
func New() *DocumentParser {
	return &DocumentParser{}
}

// Parse extracts the complete text content of the document. The format is
// chosen by file extension.
func (p *DocumentParser) Parse(data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", &ParseError{Filename: filename, Reason: "empty file"}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return parsePDF(data, filename)
	case ".docx":
		return parseDocx(data, filename)
	case ".txt":
		return string(data), nil
	default:
		return "", &ParseError{Filename: filename, Reason: "unsupported file format"}
	}
}

func parsePDF(data []byte, filename string) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ParseError{Filename: filename, Reason: "unreadable pdf", Err: err}
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	content := strings.TrimSpace(builder.String())
	if content == "" {
		return "", &ParseError{Filename: filename, Reason: "no extractable text"}
	}
	return content, nil
}

func parseDocx(data []byte, filename string) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ParseError{Filename: filename, Reason: "unreadable docx", Err: err}
	}
	defer doc.Close()

	content := strings.TrimSpace(doc.Editable().GetContent())
	if content == "" {
		return "", &ParseError{Filename: filename, Reason: "no extractable text"}
	}
	return content, nil
}

// SupportedExtension reports whether the filename has a screening-supported
// document extension. Used by the HTTP layer to reject uploads early.
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".txt":
		return true
	default:
		return false
	}
}
