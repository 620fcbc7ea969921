package redact

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the scope it affects.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors that carry no kind.
	KindUnknown Kind = iota
	// SourceUnreadable: the source document could not be opened. Fatal.
	SourceUnreadable
	// DestinationWriteFailed: the result could not be saved. Fatal.
	DestinationWriteFailed
	// PageExtractionFailed: a page's text could not be read; it counts as empty.
	PageExtractionFailed
	// SpanCrossesPageBoundary: a span covers text of two pages and is dropped.
	SpanCrossesPageBoundary
	// TextInstanceNotFound: a resolved literal does not occur on its page.
	TextInstanceNotFound
	// ImageDecodeUnsupported: an image's format cannot be blurred; it is skipped.
	ImageDecodeUnsupported
	// ImageReplaceFailed: a blurred image could not be installed.
	ImageReplaceFailed
	// PageRedactionFailed: a page's content could not be rewritten; the page
	// is left untouched.
	PageRedactionFailed
)

var kindNames = [...]string{
	KindUnknown:             "Unknown",
	SourceUnreadable:        "SourceUnreadable",
	DestinationWriteFailed:  "DestinationWriteFailed",
	PageExtractionFailed:    "PageExtractionFailed",
	SpanCrossesPageBoundary: "SpanCrossesPageBoundary",
	TextInstanceNotFound:    "TextInstanceNotFound",
	ImageDecodeUnsupported:  "ImageDecodeUnsupported",
	ImageReplaceFailed:      "ImageReplaceFailed",
	PageRedactionFailed:     "PageRedactionFailed",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Fatal reports whether failures of this kind abort the whole document.
func (k Kind) Fatal() bool {
	return k == SourceUnreadable || k == DestinationWriteFailed
}

var (
	// ErrSourceUnreadable matches, with errors.Is, every SourceUnreadable error.
	ErrSourceUnreadable = &Error{Kind: SourceUnreadable, Page: -1, Image: -1}
	// ErrDestinationWriteFailed matches every DestinationWriteFailed error.
	ErrDestinationWriteFailed = &Error{Kind: DestinationWriteFailed, Page: -1, Image: -1}
)

// Error is a failure tagged with its kind and, where it applies, the page
// and image index (-1 when not applicable).
type Error struct {
	Kind  Kind
	Page  int
	Image int
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Page >= 0 {
		msg += fmt.Sprintf(" (page %d", e.Page)
		if e.Image >= 0 {
			msg += fmt.Sprintf(", image %d", e.Image)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so the sentinels work with
// errors.Is whatever the page or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, page, image int, err error) *Error {
	return &Error{Kind: kind, Page: page, Image: image, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
