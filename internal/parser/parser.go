// Package parser extracts plain text from uploaded documents. The set of
// supported formats is closed: adding one means adding a Format constant and
// a case to extract.
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Format int

const (
	FormatPDF Format = iota + 1
	FormatDOCX
	FormatXLSX
	FormatXLSM
	FormatPPTX
	FormatText
	FormatMarkdown
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrParseFailure      = errors.New("failed to parse document")
	ErrNoText            = errors.New("document contains no extractable text")
)

var extensions = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".xlsx": FormatXLSX,
	".xlsm": FormatXLSM,
	".xltx": FormatXLSM,
	".xltm": FormatXLSM,
	".pptx": FormatPPTX,
	".txt":  FormatText,
	".md":   FormatMarkdown,
}

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatXLSX:
		return "xlsx"
	case FormatXLSM:
		return "xlsm"
	case FormatPPTX:
		return "pptx"
	case FormatText:
		return "txt"
	case FormatMarkdown:
		return "markdown"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Document is an uploaded file: its name (for the extension) and raw bytes.
type Document struct {
	Name string
	Data []byte
}

// ParseError wraps a failure raised while extracting text from a document of
// a supported format. It matches ErrParseFailure with errors.Is.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error extracting text from %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParseFailure }

// SupportedExtensions lists accepted file extensions.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	return exts
}

func FormatFromName(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	if ext == "" {
		ext = name
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// ReadFile loads a document from disk.
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return Document{Name: filepath.Base(path), Data: data}, nil
}

// Extract returns the plain text of doc. Failures of the underlying format
// library, including panics, come back as *ParseError.
func Extract(doc Document) (text string, err error) {
	format, err := FormatFromName(doc.Name)
	if err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", &ParseError{Format: format, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	text, err = extract(format, doc.Data)
	if err != nil {
		return "", &ParseError{Format: format, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &ParseError{Format: format, Err: ErrNoText}
	}
	return text, nil
}

func extract(format Format, data []byte) (string, error) {
	switch format {
	case FormatPDF:
		return extractPDF(data)
	case FormatDOCX:
		return extractDOCX(data)
	case FormatXLSX:
		return extractXLSX(data)
	case FormatXLSM:
		return extractXLSM(data)
	case FormatPPTX:
		return extractPPTX(data)
	case FormatText:
		return extractText(data)
	case FormatMarkdown:
		return extractMarkdown(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
