// Package text lays out the text of PDF content streams at glyph level.
//
// An [Extractor] walks a content stream with the graphics state machine
// and produces a [Layout]: the page text as one string, plus a [Glyph]
// for every character code shown, carrying its bounding box in default
// user space and its position in the operation list. Separators are
// inserted by geometry, "\n" when the baseline changes and " " for a
// visible gap, and belong to no glyph.
//
//	ex := text.NewExtractor(doc.MustResolve)
//	layout, err := ex.ExtractPage(page)
//	for _, m := range layout.Search("John Smith") {
//	    fmt.Println(m.Rect)
//	}
//
// Because every byte of [Layout.Text] maps back to a glyph, a search hit
// identifies exactly which operands to rewrite when the text is removed.
package text
