// internal/domain/request.go
package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	MinImageCount = 1
	MaxImageCount = 9
)

// ImageCount is the number of images a request asks for, bounded to [1,9].
type ImageCount int

func NewImageCount(n int) (ImageCount, error) {
	if n < MinImageCount || n > MaxImageCount {
		return 0, ValidationError(fmt.Sprintf("image count must be between %d and %d, got %d", MinImageCount, MaxImageCount, n))
	}
	return ImageCount(n), nil
}

// ParseImageCount accepts the textual form a user would type, e.g. "3".
func ParseImageCount(s string) (ImageCount, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, ValidationError(fmt.Sprintf("image count %q is not a number", s))
	}
	return NewImageCount(n)
}

func (c ImageCount) Int() int { return int(c) }

// WorkflowRequest lives from acceptance of a submission until the workflow terminates.
type WorkflowRequest struct {
	ID          string
	RequesterID string
	SourceImage string
	Count       ImageCount
}

// NewWorkflowRequest validates the inputs. sourceImage may be empty only when
// the strategy does not need a photo; callers pass requireImage accordingly.
func NewWorkflowRequest(requesterID, sourceImage string, count int, requireImage bool) (WorkflowRequest, error) {
	c, err := NewImageCount(count)
	if err != nil {
		return WorkflowRequest{}, err
	}
	if requireImage {
		if err := checkSourceImage(sourceImage); err != nil {
			return WorkflowRequest{}, err
		}
	}
	if requesterID == "" {
		requesterID = "local"
	}
	return WorkflowRequest{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		SourceImage: sourceImage,
		Count:       c,
	}, nil
}

func checkSourceImage(path string) error {
	if path == "" {
		return ValidationError("source image is required")
	}
	if !IsImageExtension(filepath.Ext(path)) {
		return ValidationError(fmt.Sprintf("unsupported image type: %s", filepath.Ext(path)))
	}
	info, err := os.Stat(path)
	if err != nil {
		return ValidationError(fmt.Sprintf("source image not readable: %s", path))
	}
	if info.IsDir() {
		return ValidationError(fmt.Sprintf("source image is a directory: %s", path))
	}
	return nil
}
