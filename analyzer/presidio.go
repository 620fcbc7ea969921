package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/alzaheer/privacyshield/model"
)

// DefaultTimeout bounds every request to the Presidio service.
const DefaultTimeout = 30 * time.Second

// Presidio calls a Presidio Analyzer service over HTTP.
type Presidio struct {
	baseURL  string
	client   *http.Client
	language string
	minScore float64
	limiter  *rate.Limiter
}

// PresidioOption configures a Presidio client.
type PresidioOption func(*Presidio)

// WithHTTPClient replaces the default client. Its timeout is kept.
func WithHTTPClient(c *http.Client) PresidioOption {
	return func(p *Presidio) { p.client = c }
}

// WithLanguage sets the analysis language (default "en").
func WithLanguage(lang string) PresidioOption {
	return func(p *Presidio) { p.language = lang }
}

// WithScoreThreshold sets the score_threshold sent with each request.
func WithScoreThreshold(score float64) PresidioOption {
	return func(p *Presidio) { p.minScore = score }
}

// WithRateLimit limits requests to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) PresidioOption {
	return func(p *Presidio) { p.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewPresidio creates a client for the service at baseURL. A zero
// timeout means DefaultTimeout.
func NewPresidio(baseURL string, timeout time.Duration, opts ...PresidioOption) *Presidio {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &Presidio{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		language: "en",
		minScore: DefaultMinScore,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type analyzeRequest struct {
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	Entities       []string `json:"entities,omitempty"`
	ScoreThreshold float64  `json:"score_threshold,omitempty"`
}

type analyzeResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Analyze sends text to POST /analyze. Presidio counts offsets in code
// points; they are converted to byte offsets.
func (p *Presidio) Analyze(ctx context.Context, text string, entities []string) ([]model.PIISpan, error) {
	ctx, span := tracer.Start(ctx, "analyzer.presidio")
	defer span.End()

	body, err := json.Marshal(analyzeRequest{
		Text:           text,
		Language:       p.language,
		Entities:       entities,
		ScoreThreshold: p.minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding analyze request: %w", err)
	}

	var results []analyzeResult
	if err := p.do(ctx, http.MethodPost, "/analyze", body, &results); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "presidio request failed")
		return nil, err
	}

	offsets := runeOffsets(text)
	spans := make([]model.PIISpan, 0, len(results))
	for _, r := range results {
		if r.Start < 0 || r.End > len(offsets)-1 || r.Start >= r.End {
			return nil, fmt.Errorf("presidio returned span %d..%d outside the text", r.Start, r.End)
		}
		spans = append(spans, model.PIISpan{
			EntityType: r.EntityType,
			Start:      offsets[r.Start],
			End:        offsets[r.End],
			Score:      r.Score,
		})
	}
	span.SetAttributes(attribute.Int("pii.spans", len(spans)))
	return spans, nil
}

// SupportedEntities asks the service which entity types it recognizes.
func (p *Presidio) SupportedEntities(ctx context.Context) ([]string, error) {
	var entities []string
	path := "/supportedentities?language=" + url.QueryEscape(p.language)
	if err := p.do(ctx, http.MethodGet, path, nil, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func (p *Presidio) do(ctx context.Context, method, path string, body []byte, out any) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("building presidio request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("presidio %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("presidio %s: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding presidio response: %w", err)
	}
	return nil
}

// runeOffsets maps code point indices to byte offsets; the final entry
// is len(text).
func runeOffsets(text string) []int {
	out := make([]int, 0, len(text)+1)
	for i := range text {
		out = append(out, i)
	}
	return append(out, len(text))
}
