package model

// PIISpan is a detected personal-information span in the joined document
// text. Start and End are byte offsets, End exclusive.
type PIISpan struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Len returns the span length in bytes.
func (s PIISpan) Len() int { return s.End - s.Start }

// PageOffsetRange is the slice of the joined text owned by one page,
// including the page's trailing separator. End is exclusive.
type PageOffsetRange struct {
	Page  int
	Start int
	End   int
}

// Contains reports whether offset falls inside the range.
func (r PageOffsetRange) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// ResolvedSpan is a span mapped onto one page: local byte offsets into the
// page text and the literal substring to search for on that page.
type ResolvedSpan struct {
	Page       int
	LocalStart int
	LocalEnd   int
	Literal    string
	EntityType string
}

// RedactionRegion is a rectangle on a page that gets covered and purged.
type RedactionRegion struct {
	Page  int
	Rect  Rect
	Label string
}

// ImageDescriptor records how an image is encoded.
type ImageDescriptor struct {
	Width            int
	Height           int
	ColorSpace       string
	Components       int
	BitsPerComponent int
	Filter           string
}

// ImageRef is one image drawn on a page. Placement is the rectangle the
// image occupies in page space; HasPlacement is false when no drawing
// operator for it was found.
type ImageRef struct {
	Number       int
	Name         string
	Page         int
	Placement    Rect
	HasPlacement bool
	Descriptor   ImageDescriptor
	Data         []byte
}
