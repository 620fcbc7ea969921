package redact

import (
	"sort"
	"strings"

	"github.com/alzaheer/privacyshield/model"
)

// Separator joins page texts in the whole-document text. Every page,
// the last included, is followed by one.
const Separator = "\n\n"

// OffsetIndex partitions the whole-document text into per-page ranges.
// It is immutable once built.
type OffsetIndex struct {
	ranges []model.PageOffsetRange
	length int
}

// NewOffsetIndex builds the index with one forward walk over the page
// texts. A page without text still owns a range holding its separator.
func NewOffsetIndex(pageTexts []string) *OffsetIndex {
	idx := &OffsetIndex{ranges: make([]model.PageOffsetRange, len(pageTexts))}
	pos := 0
	for i, t := range pageTexts {
		end := pos + len(t) + len(Separator)
		idx.ranges[i] = model.PageOffsetRange{Page: i, Start: pos, End: end}
		pos = end
	}
	idx.length = pos
	return idx
}

// JoinPages returns the whole-document text that NewOffsetIndex measures.
func JoinPages(pageTexts []string) string {
	var sb strings.Builder
	for _, t := range pageTexts {
		sb.WriteString(t)
		sb.WriteString(Separator)
	}
	return sb.String()
}

// Ranges returns a copy of the page ranges in page order.
func (x *OffsetIndex) Ranges() []model.PageOffsetRange {
	return append([]model.PageOffsetRange(nil), x.ranges...)
}

// Len returns the length of the whole-document text.
func (x *OffsetIndex) Len() int { return x.length }

// Pages returns the number of pages indexed.
func (x *OffsetIndex) Pages() int { return len(x.ranges) }

// Find returns the range containing offset, or false when offset lies
// outside the document.
func (x *OffsetIndex) Find(offset int) (model.PageOffsetRange, bool) {
	if offset < 0 || offset >= x.length {
		return model.PageOffsetRange{}, false
	}
	i := sort.Search(len(x.ranges), func(i int) bool { return x.ranges[i].End > offset })
	if i == len(x.ranges) {
		return model.PageOffsetRange{}, false
	}
	return x.ranges[i], true
}
