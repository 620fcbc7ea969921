// Package redact de-identifies PDF documents.
//
// The Assembler extracts the text of every page, joins it into one
// string (pages separated by Separator) and asks an Analyzer for
// personal information in it. The spans found are mapped back to pages
// through an OffsetIndex and ResolveSpans; spans that cross a page break
// are dropped. Each page is then processed in order: the PageRedactor
// removes every occurrence of the detected literals from the content
// stream and covers it with a labelled box, and the ImageSanitizer
// replaces every image with the output of a Blurrer. Failures on one page
// or image are logged and recorded in the Report; only an unreadable
// source or a failed write abort the run.
//
//	a := redact.NewAssembler(analyzer, blurrer)
//	report, err := a.DeidentifyFile(ctx, "in.pdf", "out.pdf", redact.DefaultOptions())
package redact
