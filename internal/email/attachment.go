package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Attachment is a file attached to an email. The source is either a file on
// disk (Path) or in-memory bytes (Data); file content is read lazily when a
// courier serializes the attachment.
type Attachment struct {
	Path string
	Data []byte

	// Name is the display name. Defaults to the base name of Path.
	Name string

	// ContentID marks the attachment as inline when set.
	ContentID string

	// Charset overrides the charset advertised for the attachment.
	Charset string

	// ContentType overrides MIME type detection.
	ContentType string
}

// FileAttachment returns an attachment backed by the file at path.
func FileAttachment(path, name string) Attachment {
	return Attachment{Path: path, Name: name}
}

// Inline reports whether the attachment is embedded in the body.
func (a Attachment) Inline() bool {
	return a.ContentID != ""
}

// DisplayName returns the name shown to the recipient.
func (a Attachment) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.Path != "" {
		return filepath.Base(a.Path)
	}
	return "attachment"
}

// Content returns the attachment bytes, reading the backing file if needed.
func (a Attachment) Content() ([]byte, error) {
	if a.Path == "" {
		return a.Data, nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %q: %w", a.Path, err)
	}
	return data, nil
}

// MIMEType returns the media type of the attachment without parameters,
// e.g. "text/plain". The ContentType override wins over detection.
func (a Attachment) MIMEType(content []byte) string {
	if a.ContentType != "" {
		return a.ContentType
	}
	detected := mimetype.Detect(content).String()
	mediaType, _, _ := strings.Cut(detected, ";")
	return strings.TrimSpace(mediaType)
}
