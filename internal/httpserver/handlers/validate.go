package handlers

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// FileValidationError rejects an upload before anything touches disk.
type FileValidationError struct {
	Reason string
}

func (e *FileValidationError) Error() string {
	return fmt.Sprintf("invalid file: %s", e.Reason)
}

var magicNumbers = map[string][]byte{
	"application/pdf": []byte("%PDF-"),
	"image/png":       {0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a},
	"image/jpeg":      {0xff, 0xd8, 0xff},
}

// ValidateUpload checks size, magic bytes for the declared MIME type and,
// for PDFs, that the document structure actually parses. Declared types are
// limited to the map above.
func ValidateUpload(data []byte, mimeType string, maxBytes int64) error {
	if len(data) == 0 {
		return &FileValidationError{Reason: "file is empty"}
	}
	if int64(len(data)) > maxBytes {
		return &FileValidationError{Reason: fmt.Sprintf("file exceeds %d bytes", maxBytes)}
	}
	magic, ok := magicNumbers[mimeType]
	if !ok {
		return &FileValidationError{Reason: fmt.Sprintf("unsupported type %s", mimeType)}
	}
	if !bytes.HasPrefix(data, magic) {
		return &FileValidationError{Reason: fmt.Sprintf("content does not match declared type %s", mimeType)}
	}
	if mimeType == "application/pdf" {
		if _, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
			return &FileValidationError{Reason: "corrupt pdf structure"}
		}
	}
	return nil
}
