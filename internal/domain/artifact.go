// internal/domain/artifact.go
package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var validImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".gif":  {},
}

// IsImageExtension reports whether ext (with leading dot, any case) is a supported image type.
func IsImageExtension(ext string) bool {
	_, ok := validImageExtensions[strings.ToLower(ext)]
	return ok
}

// ShortID returns the 8 hex character identifier used for artifacts and generated filenames.
func ShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// GeneratedFilename builds "generated_<8hex><ext>" for files written to the output directory.
func GeneratedFilename(id, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return "generated_" + id + ext
}

// ImageArtifact is an image file produced or consumed by a workflow. It is immutable.
type ImageArtifact struct {
	id        string
	path      string
	createdAt time.Time
}

// NewImageArtifact tracks path under a fresh id.
func NewImageArtifact(path string, createdAt time.Time) ImageArtifact {
	return NewImageArtifactWithID(ShortID(), path, createdAt)
}

// NewImageArtifactWithID is used when the id was already chosen for the filename.
func NewImageArtifactWithID(id, path string, createdAt time.Time) ImageArtifact {
	return ImageArtifact{id: id, path: path, createdAt: createdAt}
}

func (a ImageArtifact) ID() string           { return a.id }
func (a ImageArtifact) Path() string         { return a.path }
func (a ImageArtifact) CreatedAt() time.Time { return a.createdAt }
func (a ImageArtifact) Filename() string     { return filepath.Base(a.path) }

// Extension is lower-cased and includes the leading dot.
func (a ImageArtifact) Extension() string {
	return strings.ToLower(filepath.Ext(a.path))
}

func (a ImageArtifact) IsValid() bool {
	return a.path != "" && IsImageExtension(a.Extension())
}
