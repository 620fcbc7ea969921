// Package privacyshield provides a fluent API for de-identifying PDF
// documents: PII text is covered and purged, embedded images are replaced
// by face-blurred copies.
//
// Basic usage:
//
//	report, err := privacyshield.Open("record.pdf").SaveAs(ctx, "record_clean.pdf")
//	if err != nil {
//	    // handle error
//	}
//	log.Printf("%d regions redacted", report.Regions())
//
// With options:
//
//	report, err := privacyshield.Open("record.pdf").
//	    Entities("PERSON", "US_SSN").
//	    Label("[REMOVED]").
//	    WithBlurrer(faceblur.New(detector)).
//	    SaveAs(ctx, "record_clean.pdf")
//
// Every chain method returns a new Shield, so a configured Shield can be
// reused as a template. The redact, analyzer and faceblur packages expose
// the underlying pieces for finer control.
package privacyshield

// Open returns a Shield for the PDF file at filename. The file is read by
// the terminal operation.
func Open(filename string) *Shield {
	return &Shield{
		filename: filename,
		options:  defaultOptions(),
	}
}

// FromBytes returns a Shield for an in-memory PDF.
func FromBytes(data []byte) *Shield {
	return &Shield{
		data:    data,
		options: defaultOptions(),
	}
}

// Must wraps a call returning (T, error) and panics on error. It is
// intended for scripts and tests.
//
//	texts := privacyshield.Must(privacyshield.Open("record.pdf").Text())
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
