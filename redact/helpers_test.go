package redact

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/alzaheer/privacyshield/document"
	"github.com/alzaheer/privacyshield/model"
	"github.com/alzaheer/privacyshield/text"
)

// literalAnalyzer reports every occurrence of its literals.
type literalAnalyzer struct {
	literals map[string]string // literal -> entity type
	extra    []model.PIISpan
	err      error
	calls    int
}

func (a *literalAnalyzer) Analyze(_ context.Context, txt string, entities []string) ([]model.PIISpan, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	var out []model.PIISpan
	for lit, entity := range a.literals {
		if len(entities) > 0 && !contains(entities, entity) {
			continue
		}
		for from := 0; ; {
			i := strings.Index(txt[from:], lit)
			if i < 0 {
				break
			}
			out = append(out, model.PIISpan{EntityType: entity, Start: from + i, End: from + i + len(lit), Score: 1})
			from += i + len(lit)
		}
	}
	return append(out, a.extra...), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// recordingBlurrer returns its input, or out when set, and counts calls.
// It panics on every call when panic is set, or once panicAfter calls
// have succeeded.
type recordingBlurrer struct {
	mu         sync.Mutex
	out        []byte
	inputs     [][]byte
	panic      bool
	panicAfter int
}

func (b *recordingBlurrer) Blur(_ context.Context, img []byte) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.panic || (b.panicAfter > 0 && len(b.inputs) >= b.panicAfter) {
		panic("blurrer exploded")
	}
	b.inputs = append(b.inputs, img)
	if b.out != nil {
		return b.out
	}
	return img
}

func (b *recordingBlurrer) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inputs)
}

var errAnalyzerDown = errors.New("analyzer unavailable")

func nopLogger() zerolog.Logger { return zerolog.Nop() }

// pageTexts opens a PDF and extracts the text of every page.
func pageTexts(t *testing.T, data []byte) []string {
	t.Helper()
	doc, err := document.OpenBytes(data)
	require.NoError(t, err)
	defer doc.Close()
	return docTexts(t, doc)
}

func docTexts(t *testing.T, doc *document.Document) []string {
	t.Helper()
	list, err := doc.Pages()
	require.NoError(t, err)
	out := make([]string, len(list))
	for i, p := range list {
		layout, err := text.NewExtractor(doc.MustResolve).ExtractPage(p)
		require.NoError(t, err)
		out[i] = layout.Text
	}
	return out
}
