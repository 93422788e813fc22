// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the phase that produced it.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNavigation
	KindClipboard
	KindUpload
	KindResponse
	KindImageGeneration
	KindDownload
	KindBrowser
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNavigation:
		return "navigation"
	case KindClipboard:
		return "clipboard"
	case KindUpload:
		return "upload"
	case KindResponse:
		return "response"
	case KindImageGeneration:
		return "image_generation"
	case KindDownload:
		return "download"
	case KindBrowser:
		return "browser"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is the single error type raised by the automation phases.
// Cause is a human readable detail; Err is the wrapped underlying error, if any.
type Error struct {
	Kind    Kind
	Message string
	Cause   string
	Err     error
}

func (e *Error) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("%s | cause: %s", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == "" && t.Err == nil
}

// Sentinels for errors.Is checks. They carry only a Kind.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNavigation      = &Error{Kind: KindNavigation}
	ErrClipboard       = &Error{Kind: KindClipboard}
	ErrUpload          = &Error{Kind: KindUpload}
	ErrResponse        = &Error{Kind: KindResponse}
	ErrImageGeneration = &Error{Kind: KindImageGeneration}
	ErrDownload        = &Error{Kind: KindDownload}
	ErrBrowser         = &Error{Kind: KindBrowser}
	ErrConfiguration   = &Error{Kind: KindConfiguration}
)

func newError(kind Kind, msg string, err error) *Error {
	e := &Error{Kind: kind, Message: msg, Err: err}
	if err != nil {
		e.Cause = err.Error()
	}
	return e
}

func ValidationError(msg string) *Error { return newError(KindValidation, msg, nil) }

func NavigationError(msg string, err error) *Error { return newError(KindNavigation, msg, err) }

func ClipboardError(msg string, err error) *Error { return newError(KindClipboard, msg, err) }

func UploadError(msg string, err error) *Error { return newError(KindUpload, msg, err) }

func ResponseError(msg string, err error) *Error { return newError(KindResponse, msg, err) }

func ImageGenerationError(msg string, err error) *Error {
	return newError(KindImageGeneration, msg, err)
}

func DownloadError(msg string, err error) *Error { return newError(KindDownload, msg, err) }

func BrowserError(msg string, err error) *Error { return newError(KindBrowser, msg, err) }

func ConfigurationError(msg string, err error) *Error {
	return newError(KindConfiguration, msg, err)
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
