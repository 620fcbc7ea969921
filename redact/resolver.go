package redact

import (
	"sort"

	"github.com/alzaheer/privacyshield/model"
)

// DroppedSpan is a span that could not be mapped onto a single page.
type DroppedSpan struct {
	Span   model.PIISpan
	Reason Kind
	Detail string
}

// ResolveSpans maps whole-document spans onto pages. A span belongs to a
// page when its first and last byte fall in that page's range; spans that
// straddle two ranges are dropped with SpanCrossesPageBoundary. A span
// that reaches into its page's trailing separator is clipped to the page
// text. The result is ordered by page, then local start.
func ResolveSpans(spans []model.PIISpan, index *OffsetIndex, pageTexts []string) ([]model.ResolvedSpan, []DroppedSpan) {
	var resolved []model.ResolvedSpan
	var dropped []DroppedSpan
	drop := func(s model.PIISpan, kind Kind, detail string) {
		dropped = append(dropped, DroppedSpan{Span: s, Reason: kind, Detail: detail})
	}

	for _, s := range spans {
		if s.End <= s.Start {
			drop(s, KindUnknown, "empty span")
			continue
		}
		first, ok1 := index.Find(s.Start)
		last, ok2 := index.Find(s.End - 1)
		if !ok1 || !ok2 {
			drop(s, KindUnknown, "span outside the document")
			continue
		}
		if first.Page != last.Page {
			drop(s, SpanCrossesPageBoundary, "span crosses a page break")
			continue
		}
		if first.Page >= len(pageTexts) {
			drop(s, KindUnknown, "no text for page")
			continue
		}

		text := pageTexts[first.Page]
		local, localEnd := s.Start-first.Start, s.End-first.Start
		if localEnd > len(text) {
			localEnd = len(text)
		}
		if local >= localEnd {
			drop(s, KindUnknown, "span covers only the page separator")
			continue
		}
		resolved = append(resolved, model.ResolvedSpan{
			Page:       first.Page,
			LocalStart: local,
			LocalEnd:   localEnd,
			Literal:    text[local:localEnd],
			EntityType: s.EntityType,
		})
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].Page != resolved[j].Page {
			return resolved[i].Page < resolved[j].Page
		}
		return resolved[i].LocalStart < resolved[j].LocalStart
	})
	return resolved, dropped
}

// ByPage groups resolved spans by page index.
func ByPage(spans []model.ResolvedSpan) map[int][]model.ResolvedSpan {
	out := make(map[int][]model.ResolvedSpan)
	for _, s := range spans {
		out[s.Page] = append(out[s.Page], s)
	}
	return out
}
