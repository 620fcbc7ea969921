package redact

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alzaheer/privacyshield/core"
	"github.com/alzaheer/privacyshield/document"
	"github.com/alzaheer/privacyshield/internal/pdftest"
	"github.com/alzaheer/privacyshield/model"
	"github.com/alzaheer/privacyshield/text"
)

func literalSpan(lit string) model.ResolvedSpan {
	return model.ResolvedSpan{Page: 0, LocalEnd: len(lit), Literal: lit, EntityType: "TEST"}
}

func openFirstPage(t *testing.T, data []byte) (*document.Document, *PageRedactor) {
	t.Helper()
	doc, err := document.OpenBytes(data)
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Close() })
	return doc, NewPageRedactor(doc, nopLogger())
}

func TestRedactEveryOccurrence(t *testing.T) {
	doc, r := openFirstPage(t, pdftest.TextDocument(
		"John Smith called.\nThen John Smith wrote\nto John Smith again."))
	page, err := doc.Page(0)
	require.NoError(t, err)

	regions, err := r.Redact(context.Background(), page, []model.ResolvedSpan{
		literalSpan("John Smith"),
		literalSpan("John Smith"),
	})
	require.NoError(t, err)
	require.Len(t, regions, 3)

	for i, reg := range regions {
		assert.Equal(t, 0, reg.Page)
		assert.Equal(t, DefaultLabel, reg.Label)
		assert.False(t, reg.Rect.IsEmpty())
		if i > 0 {
			assert.Less(t, reg.Rect.Y0, regions[i-1].Rect.Y0, "one region per line, top to bottom")
		}
	}

	txt := docTexts(t, doc)[0]
	assert.NotContains(t, txt, "John")
	assert.NotContains(t, txt, "Smith")
	assert.Contains(t, txt, "called.")
	assert.Contains(t, txt, "again.")
	assert.Equal(t, 3, strings.Count(txt, DefaultLabel))
}

func TestRedactedTextIsGoneAfterSave(t *testing.T) {
	doc, r := openFirstPage(t, pdftest.TextDocument("Name: Ann Lee\nSSN: 123-45-6789\nStatus: active"))
	page, err := doc.Page(0)
	require.NoError(t, err)

	_, err = r.Redact(context.Background(), page, []model.ResolvedSpan{literalSpan("123-45-6789")})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doc.Save(&buf))

	txt := pageTexts(t, buf.Bytes())[0]
	assert.NotContains(t, txt, "123-45-6789")
	assert.NotContains(t, txt, "6789")
	assert.Contains(t, txt, "SSN:")
	assert.Contains(t, txt, "Status: active")
	assert.NotContains(t, string(buf.Bytes()), "123-45-6789")
}

func TestRedactKeepsRemainingGlyphsInPlace(t *testing.T) {
	doc, r := openFirstPage(t, pdftest.TextDocument("Name: John Smith, age 42"))
	page, err := doc.Page(0)
	require.NoError(t, err)

	before, err := text.NewExtractor(doc.MustResolve).ExtractPage(page)
	require.NoError(t, err)
	ageBefore := before.Search("age 42")
	require.Len(t, ageBefore, 1)

	regions, err := r.Redact(context.Background(), page, []model.ResolvedSpan{literalSpan("John Smith")})
	require.NoError(t, err)
	require.Len(t, regions, 1)

	after, err := text.NewExtractor(doc.MustResolve).ExtractPage(page)
	require.NoError(t, err)
	ageAfter := after.Search("age 42")
	require.Len(t, ageAfter, 1)
	assert.InDelta(t, ageBefore[0].Rect.X0, ageAfter[0].Rect.X0, 0.01)
	assert.InDelta(t, ageBefore[0].Rect.Y0, ageAfter[0].Rect.Y0, 0.01)

	// the cover sits where the name was
	name := before.Search("John Smith")[0].Rect
	assert.Equal(t, name, regions[0].Rect)
}

func TestRedactTextOperators(t *testing.T) {
	content := "BT\n/F1 12 Tf\n14 TL\n72 700 Td\n" +
		"[(Call ) -50 (John Smith) ( now)] TJ\n" +
		"(Mary Major) '\n" +
		"2 0.5 (Bob Stone here) \"\n" +
		"ET\n"
	b := pdftest.New()
	b.AddPage(pdftest.Page{Content: content})
	doc, r := openFirstPage(t, b.Bytes())
	page, err := doc.Page(0)
	require.NoError(t, err)

	regions, err := r.Redact(context.Background(), page, []model.ResolvedSpan{
		literalSpan("John Smith"), literalSpan("Mary Major"), literalSpan("Bob Stone"),
	})
	require.NoError(t, err)
	assert.Len(t, regions, 3)

	txt := docTexts(t, doc)[0]
	for _, gone := range []string{"John", "Mary", "Major", "Bob", "Stone"} {
		assert.NotContains(t, txt, gone)
	}
	assert.Contains(t, txt, "Call")
	assert.Contains(t, txt, "now")
	assert.Contains(t, txt, "here")
}

func TestRedactLiteralNotFound(t *testing.T) {
	doc, r := openFirstPage(t, pdftest.TextDocument("nothing sensitive here"))
	page, err := doc.Page(0)
	require.NoError(t, err)
	before, err := page.ContentData()
	require.NoError(t, err)

	regions, err := r.Redact(context.Background(), page, []model.ResolvedSpan{literalSpan("Jane Roe")})
	require.NoError(t, err)
	assert.Empty(t, regions)

	after, err := page.ContentData()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRedactCustomLabel(t *testing.T) {
	doc, r := openFirstPage(t, pdftest.TextDocument("Contact Alexandra Richardson today"))
	page, err := doc.Page(0)
	require.NoError(t, err)

	regions, err := r.WithLabel("XXX").Redact(context.Background(), page,
		[]model.ResolvedSpan{literalSpan("Alexandra Richardson")})
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "XXX", regions[0].Label)
	assert.Contains(t, docTexts(t, doc)[0], "XXX")
}

func TestRedactCancelled(t *testing.T) {
	doc, r := openFirstPage(t, pdftest.TextDocument("John Smith"))
	page, err := doc.Page(0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Redact(ctx, page, []model.ResolvedSpan{literalSpan("John Smith")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, docTexts(t, doc)[0], "John Smith")
}

func TestRedactMatchAcrossLines(t *testing.T) {
	doc, r := openFirstPage(t, pdftest.TextDocument("Reviewed and approved by Dr.\nSmith today. Diagnosis: healthy"))
	page, err := doc.Page(0)
	require.NoError(t, err)

	regions, err := r.Redact(context.Background(), page, []model.ResolvedSpan{literalSpan("Dr.\nSmith")})
	require.NoError(t, err)
	require.Len(t, regions, 2, "one region per line")
	assert.Greater(t, regions[0].Rect.Y0, regions[1].Rect.Y1)

	txt := docTexts(t, doc)[0]
	assert.NotContains(t, txt, "Dr.")
	assert.NotContains(t, txt, "Smith")
	assert.Contains(t, txt, "Reviewed and approved by")
	assert.Contains(t, txt, "today. Diagnosis: healthy")
}

// formDocument builds pages that each paint one shared form holding an
// SSN next to their own text.
func formDocument(pageCount int) []byte {
	b := pdftest.New()
	form := b.AddForm("BT /F1 12 Tf 72 600 Td (SSN: 123-45-6789) Tj ET", nil)
	for i := 0; i < pageCount; i++ {
		b.AddPage(pdftest.Page{
			Content: pdftest.Text("Name: John Smith") + "/Fm1 Do\n",
			Images:  map[string]core.IndirectRef{"Fm1": form},
		})
	}
	return b.Bytes()
}

// decodedStreamsContain reports whether any stream of the PDF holds s
// once decoded.
func decodedStreamsContain(t *testing.T, data []byte, s string) bool {
	t.Helper()
	doc := openDoc(t, data)
	size, _ := core.Number(doc.Trailer()["Size"])
	for num := 1; num < int(size); num++ {
		obj, err := doc.Object(num)
		if err != nil {
			continue
		}
		if st, ok := obj.(*core.Stream); ok {
			if dec, err := st.Decode(); err == nil && strings.Contains(string(dec), s) {
				return true
			}
		}
	}
	return false
}

func TestRedactTextInsideForm(t *testing.T) {
	doc, r := openFirstPage(t, formDocument(1))
	page, err := doc.Page(0)
	require.NoError(t, err)
	require.Contains(t, docTexts(t, doc)[0], "123-45-6789")

	regions, err := r.Redact(context.Background(), page, []model.ResolvedSpan{
		literalSpan("John Smith"), literalSpan("123-45-6789"),
	})
	require.NoError(t, err)
	require.Len(t, regions, 2)

	var buf bytes.Buffer
	require.NoError(t, doc.Save(&buf))
	txt := pageTexts(t, buf.Bytes())[0]
	assert.Contains(t, txt, "Name:")
	assert.Contains(t, txt, "SSN:")
	assert.NotContains(t, txt, "123-45-6789")
	assert.False(t, decodedStreamsContain(t, buf.Bytes(), "123-45-6789"))
	assert.False(t, decodedStreamsContain(t, buf.Bytes(), "John Smith"))
}

func TestRedactSharedFormIsCopied(t *testing.T) {
	doc, r := openFirstPage(t, formDocument(2))
	page, err := doc.Page(0)
	require.NoError(t, err)

	_, err = r.Redact(context.Background(), page, []model.ResolvedSpan{literalSpan("123-45-6789")})
	require.NoError(t, err)

	texts := docTexts(t, doc)
	assert.NotContains(t, texts[0], "123-45-6789")
	assert.Contains(t, texts[1], "123-45-6789", "the other page keeps the original form")
}

func TestRedactNestedForm(t *testing.T) {
	b := pdftest.New()
	inner := b.AddForm("BT /F1 12 Tf 72 500 Td (Card 4111 1111 1111 1111) Tj ET", nil)
	outer := b.AddForm("BT /F1 12 Tf 72 600 Td (Account holder) Tj ET\n/Fm2 Do\n",
		map[string]core.IndirectRef{"Fm2": inner})
	b.AddPage(pdftest.Page{
		Content: "/Fm1 Do\n",
		Images:  map[string]core.IndirectRef{"Fm1": outer},
	})
	doc, r := openFirstPage(t, b.Bytes())
	page, err := doc.Page(0)
	require.NoError(t, err)

	regions, err := r.Redact(context.Background(), page, []model.ResolvedSpan{literalSpan("4111 1111 1111 1111")})
	require.NoError(t, err)
	require.Len(t, regions, 1)

	txt := docTexts(t, doc)[0]
	assert.Contains(t, txt, "Account holder")
	assert.Contains(t, txt, "Card")
	assert.NotContains(t, txt, "4111")
	assert.True(t, doc.Has(outer), "originals stay until the document is saved")
}
