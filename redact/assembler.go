package redact

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alzaheer/privacyshield/document"
	"github.com/alzaheer/privacyshield/model"
	"github.com/alzaheer/privacyshield/pages"
	"github.com/alzaheer/privacyshield/text"
)

var tracer = otel.Tracer("github.com/alzaheer/privacyshield/redact")

// Analyzer finds personal information in text. Offsets in the returned
// spans are byte offsets into text.
type Analyzer interface {
	Analyze(ctx context.Context, text string, entities []string) ([]model.PIISpan, error)
}

// Blurrer returns a blurred copy of an encoded image. It must always
// return usable image bytes, falling back to its input.
type Blurrer interface {
	Blur(ctx context.Context, image []byte) []byte
}

// Options selects what Deidentify does.
type Options struct {
	RedactPII bool
	BlurFaces bool
	// PIIEntityTypes limits detection to these entity types; empty means
	// every type the analyzer supports.
	PIIEntityTypes []string
	// Label replaces DefaultLabel when set.
	Label string
}

// DefaultOptions enables both text redaction and face blurring.
func DefaultOptions() Options {
	return Options{RedactPII: true, BlurFaces: true}
}

// PageReport describes what happened to one page.
type PageReport struct {
	Page    int
	Regions []model.RedactionRegion
	Images  SanitizeStats
	// Err is set when the page was left unredacted.
	Err error
}

// Report summarises a Deidentify run.
type Report struct {
	RunID        string
	Pages        []PageReport
	Spans        int
	DroppedSpans []DroppedSpan
	// ExtractionFailures lists pages whose text could not be read; they
	// were analysed as empty.
	ExtractionFailures []error
	// AnalyzerErr is set when the analyzer failed and no text was redacted.
	AnalyzerErr error
}

// Regions returns the number of redacted regions over all pages.
func (r *Report) Regions() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Regions)
	}
	return n
}

// ImagesReplaced returns the number of replaced images over all pages.
func (r *Report) ImagesReplaced() int {
	n := 0
	for _, p := range r.Pages {
		n += p.Images.Replaced
	}
	return n
}

// Failures returns every page and image error of the run.
func (r *Report) Failures() []error {
	errs := append([]error(nil), r.ExtractionFailures...)
	for _, p := range r.Pages {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
		errs = append(errs, p.Images.Errors...)
	}
	return errs
}

// Assembler runs the de-identification pipeline over whole documents.
type Assembler struct {
	analyzer Analyzer
	blurrer  Blurrer
	logger   zerolog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithLogger sets the logger; the global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = l }
}

// NewAssembler creates an Assembler. Either collaborator may be nil, in
// which case the matching step is skipped.
func NewAssembler(analyzer Analyzer, blurrer Blurrer, opts ...AssemblerOption) *Assembler {
	a := &Assembler{analyzer: analyzer, blurrer: blurrer, logger: log.Logger}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Deidentify reads a PDF from src, redacts and blurs it according to opts
// and writes the result to dst. Only an unreadable source, a failed
// write or a cancelled context return an error; everything else is
// isolated to its page and recorded in the report.
func (a *Assembler) Deidentify(ctx context.Context, src io.Reader, dst io.Writer, opts Options) (*Report, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, newError(SourceUnreadable, -1, -1, err)
	}
	return a.DeidentifyBytes(ctx, data, dst, opts)
}

// DeidentifyBytes is Deidentify for an in-memory source.
func (a *Assembler) DeidentifyBytes(ctx context.Context, data []byte, dst io.Writer, opts Options) (*Report, error) {
	return a.process(ctx, data, opts, func(doc *document.Document) error {
		return doc.Save(dst)
	})
}

// DeidentifyFile de-identifies the PDF at in and writes it to out. out is
// replaced atomically and never left half written.
func (a *Assembler) DeidentifyFile(ctx context.Context, in, out string, opts Options) (*Report, error) {
	data, err := os.ReadFile(in)
	if err != nil {
		return nil, newError(SourceUnreadable, -1, -1, err)
	}
	return a.DeidentifyBytesToFile(ctx, data, out, opts)
}

// DeidentifyBytesToFile is DeidentifyFile for an in-memory source.
func (a *Assembler) DeidentifyBytesToFile(ctx context.Context, data []byte, out string, opts Options) (*Report, error) {
	return a.process(ctx, data, opts, func(doc *document.Document) error {
		return doc.SaveFile(out)
	})
}

func (a *Assembler) process(ctx context.Context, data []byte, opts Options, save func(*document.Document) error) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	logger := a.logger.With().Str("run_id", report.RunID).Logger()

	ctx, span := tracer.Start(ctx, "redact.deidentify", trace.WithAttributes(
		attribute.Bool("redact_pii", opts.RedactPII),
		attribute.Bool("blur_faces", opts.BlurFaces),
	))
	defer span.End()

	doc, err := document.OpenBytes(data)
	if err != nil {
		span.SetStatus(codes.Error, "source unreadable")
		return nil, newError(SourceUnreadable, -1, -1, err)
	}
	defer doc.Close()
	if doc.Repaired {
		logger.Warn().Msg("cross-reference table was damaged and has been rebuilt")
	}

	pageList, err := doc.Pages()
	if err != nil {
		span.SetStatus(codes.Error, "no page tree")
		return nil, newError(SourceUnreadable, -1, -1, err)
	}
	span.SetAttributes(attribute.Int("pages", len(pageList)))
	logger.Info().Int("pages", len(pageList)).Msg("document opened")

	byPage := a.detect(ctx, doc, pageList, opts, report, logger)

	redactor := NewPageRedactor(doc, logger)
	if opts.Label != "" {
		redactor.WithLabel(opts.Label)
	}
	var sanitizer *ImageSanitizer
	if opts.BlurFaces {
		if a.blurrer == nil {
			logger.Warn().Msg("face blurring requested without a blurrer; images are kept")
		} else {
			sanitizer = NewImageSanitizer(doc, a.blurrer, logger)
		}
	}

	for i, page := range pageList {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return report, err
		}
		pr := a.processPage(ctx, page, byPage[i], redactor, sanitizer, logger)
		pr.Page = i
		report.Pages = append(report.Pages, pr)
		recordPage(ctx, pr)
	}

	if err := save(doc); err != nil {
		span.SetStatus(codes.Error, "write failed")
		return report, newError(DestinationWriteFailed, -1, -1, err)
	}
	logger.Info().
		Int("regions", report.Regions()).
		Int("images", report.ImagesReplaced()).
		Int("dropped_spans", len(report.DroppedSpans)).
		Int("failures", len(report.Failures())).
		Msg("document de-identified")
	return report, nil
}

// detect extracts every page's text, runs the analyzer once over the
// joined text and maps the spans back to pages.
func (a *Assembler) detect(ctx context.Context, doc *document.Document, pageList []*pages.Page, opts Options, report *Report, logger zerolog.Logger) map[int][]model.ResolvedSpan {
	if !opts.RedactPII {
		return nil
	}
	if a.analyzer == nil {
		logger.Warn().Msg("PII redaction requested without an analyzer; text is kept")
		return nil
	}

	texts := make([]string, len(pageList))
	for i, page := range pageList {
		layout, err := text.NewExtractor(doc.MustResolve).ExtractPage(page)
		if err != nil {
			logger.Warn().Int("page", i).Str("kind", PageExtractionFailed.String()).Err(err).
				Msg("page text unavailable")
			report.ExtractionFailures = append(report.ExtractionFailures, newError(PageExtractionFailed, i, -1, err))
			continue
		}
		texts[i] = layout.Text
	}

	index := NewOffsetIndex(texts)
	spans, err := a.analyzer.Analyze(ctx, JoinPages(texts), opts.PIIEntityTypes)
	if err != nil {
		report.AnalyzerErr = err
		logger.Error().Err(err).Msg("analyzer failed; no text will be redacted")
		return nil
	}
	report.Spans = len(spans)

	resolved, dropped := ResolveSpans(spans, index, texts)
	for _, d := range dropped {
		logger.Warn().
			Str("kind", d.Reason.String()).
			Str("entity", d.Span.EntityType).
			Int("start", d.Span.Start).
			Int("end", d.Span.End).
			Msg(d.Detail)
	}
	if len(dropped) > 0 {
		spansDropped.Add(ctx, int64(len(dropped)))
	}
	report.DroppedSpans = dropped
	logger.Debug().Int("spans", len(spans)).Int("resolved", len(resolved)).Msg("spans resolved")
	return ByPage(resolved)
}

// processPage redacts and sanitizes one page. A failure or panic is
// confined to the page.
func (a *Assembler) processPage(ctx context.Context, page *pages.Page, spans []model.ResolvedSpan, redactor *PageRedactor, sanitizer *ImageSanitizer, logger zerolog.Logger) (pr PageReport) {
	ctx, span := tracer.Start(ctx, "redact.page", trace.WithAttributes(attribute.Int("page", page.Index)))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			pr.Err = newError(PageRedactionFailed, page.Index, -1, fmt.Errorf("panic: %v", r))
			span.SetStatus(codes.Error, "panic")
			logger.Error().Int("page", page.Index).Interface("panic", r).Msg("page processing panicked")
		}
	}()

	if len(spans) > 0 {
		regions, err := redactor.Redact(ctx, page, spans)
		if err != nil {
			pr.Err = err
			span.RecordError(err)
			logger.Error().Int("page", page.Index).Str("kind", KindOf(err).String()).Err(err).
				Msg("page left unredacted")
		} else {
			pr.Regions = regions
		}
	}

	if sanitizer != nil {
		if err := sanitizer.sanitize(ctx, page, &pr.Images); err != nil {
			span.RecordError(err)
			logger.Error().Int("page", page.Index).Str("kind", KindOf(err).String()).Err(err).
				Msg("page images not processed")
			if pr.Err == nil {
				pr.Err = err
			}
		}
	}
	span.SetAttributes(
		attribute.Int("regions", len(pr.Regions)),
		attribute.Int("images", pr.Images.Replaced),
	)
	return pr
}
