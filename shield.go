package privacyshield

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/alzaheer/privacyshield/analyzer"
	"github.com/alzaheer/privacyshield/document"
	"github.com/alzaheer/privacyshield/faceblur"
	"github.com/alzaheer/privacyshield/model"
	"github.com/alzaheer/privacyshield/redact"
	"github.com/alzaheer/privacyshield/text"
)

// Shield de-identifies one PDF. Configure it with the chain methods and
// finish with WriteTo, SaveAs, Bytes, Text or Findings.
type Shield struct {
	filename string
	data     []byte
	options  shieldOptions
}

// clone returns a copy with deep-copied options so chain methods never
// modify their receiver.
func (s *Shield) clone() *Shield {
	return &Shield{
		filename: s.filename,
		data:     s.data,
		options:  s.options.clone(),
	}
}

// Entities limits detection to the given entity types, e.g. "PERSON".
func (s *Shield) Entities(types ...string) *Shield {
	n := s.clone()
	n.options.entities = append([]string(nil), types...)
	return n
}

// Label sets the text drawn over redacted regions.
func (s *Shield) Label(label string) *Shield {
	n := s.clone()
	n.options.label = label
	return n
}

// NoRedaction leaves the text untouched.
func (s *Shield) NoRedaction() *Shield {
	n := s.clone()
	n.options.redactPII = false
	return n
}

// NoBlur leaves the images untouched.
func (s *Shield) NoBlur() *Shield {
	n := s.clone()
	n.options.blurFaces = false
	return n
}

// WithAnalyzer replaces the built-in regex analyzer, e.g. with an
// analyzer.Presidio client.
func (s *Shield) WithAnalyzer(a redact.Analyzer) *Shield {
	n := s.clone()
	n.options.analyzer = a
	return n
}

// WithBlurrer replaces the default blurrer, which re-encodes images
// without detecting faces.
func (s *Shield) WithBlurrer(b redact.Blurrer) *Shield {
	n := s.clone()
	n.options.blurrer = b
	return n
}

// WithLogger sets the logger of the run; the global zerolog logger is
// used otherwise.
func (s *Shield) WithLogger(l zerolog.Logger) *Shield {
	n := s.clone()
	n.options.logger = &l
	return n
}

// WriteTo de-identifies the document and writes it to w.
func (s *Shield) WriteTo(ctx context.Context, w io.Writer) (*redact.Report, error) {
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	asm, err := s.assembler()
	if err != nil {
		return nil, err
	}
	return asm.DeidentifyBytes(ctx, data, w, s.options.redactOptions())
}

// SaveAs de-identifies the document into the file at path.
func (s *Shield) SaveAs(ctx context.Context, path string) (*redact.Report, error) {
	asm, err := s.assembler()
	if err != nil {
		return nil, err
	}
	if s.data == nil {
		return asm.DeidentifyFile(ctx, s.filename, path, s.options.redactOptions())
	}
	return asm.DeidentifyBytesToFile(ctx, s.data, path, s.options.redactOptions())
}

// Bytes de-identifies the document and returns it.
func (s *Shield) Bytes(ctx context.Context) ([]byte, *redact.Report, error) {
	var buf bytes.Buffer
	report, err := s.WriteTo(ctx, &buf)
	if err != nil {
		return nil, report, err
	}
	return buf.Bytes(), report, nil
}

// Text returns the text of every page as the analyzer sees it.
func (s *Shield) Text() ([]string, error) {
	doc, err := s.open()
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return pageTexts(doc)
}

// Findings reports the PII the document would lose, per page, without
// changing it. Spans crossing a page boundary are returned as dropped.
func (s *Shield) Findings(ctx context.Context) ([]model.ResolvedSpan, []redact.DroppedSpan, error) {
	a, err := s.analyzer()
	if err != nil {
		return nil, nil, err
	}
	texts, err := s.Text()
	if err != nil {
		return nil, nil, err
	}
	spans, err := a.Analyze(ctx, redact.JoinPages(texts), s.options.entities)
	if err != nil {
		return nil, nil, fmt.Errorf("analyzing text: %w", err)
	}
	resolved, dropped := redact.ResolveSpans(spans, redact.NewOffsetIndex(texts), texts)
	return resolved, dropped, nil
}

func (s *Shield) load() ([]byte, error) {
	if s.data != nil {
		return s.data, nil
	}
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.filename, err)
	}
	return data, nil
}

func (s *Shield) open() (*document.Document, error) {
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return document.OpenBytes(data)
}

func (s *Shield) analyzer() (redact.Analyzer, error) {
	if s.options.analyzer != nil {
		return s.options.analyzer, nil
	}
	return analyzer.NewRegex()
}

func (s *Shield) assembler() (*redact.Assembler, error) {
	var a redact.Analyzer
	if s.options.redactPII {
		var err error
		if a, err = s.analyzer(); err != nil {
			return nil, err
		}
	}
	b := s.options.blurrer
	if b == nil {
		d, err := faceblur.NewDefaultDetector()
		if err != nil {
			return nil, fmt.Errorf("loading face cascade: %w", err)
		}
		b = faceblur.New(d)
	}
	var opts []redact.AssemblerOption
	if s.options.logger != nil {
		opts = append(opts, redact.WithLogger(*s.options.logger))
	}
	return redact.NewAssembler(a, b, opts...), nil
}

func pageTexts(doc *document.Document) ([]string, error) {
	list, err := doc.Pages()
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(list))
	for i, p := range list {
		layout, err := text.NewExtractor(doc.MustResolve).ExtractPage(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		texts[i] = layout.Text
	}
	return texts, nil
}
