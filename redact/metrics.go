package redact

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/alzaheer/privacyshield/redact")

var (
	regionsApplied metric.Int64Counter
	imagesReplaced metric.Int64Counter
	imagesSkipped  metric.Int64Counter
	pagesFailed    metric.Int64Counter
	spansDropped   metric.Int64Counter
)

func init() {
	var err error
	regionsApplied, err = meter.Int64Counter("redact.regions.applied",
		metric.WithDescription("Text regions covered and purged"))
	if err != nil {
		regionsApplied, _ = meter.Int64Counter("redact.regions.applied.fallback")
	}

	imagesReplaced, err = meter.Int64Counter("redact.images.replaced",
		metric.WithDescription("Images replaced by their blurred version"))
	if err != nil {
		imagesReplaced, _ = meter.Int64Counter("redact.images.replaced.fallback")
	}

	imagesSkipped, err = meter.Int64Counter("redact.images.skipped",
		metric.WithDescription("Images left in place because they could not be decoded or replaced"))
	if err != nil {
		imagesSkipped, _ = meter.Int64Counter("redact.images.skipped.fallback")
	}

	pagesFailed, err = meter.Int64Counter("redact.pages.failed",
		metric.WithDescription("Pages whose processing failed and were left as they were"))
	if err != nil {
		pagesFailed, _ = meter.Int64Counter("redact.pages.failed.fallback")
	}

	spansDropped, err = meter.Int64Counter("redact.spans.dropped",
		metric.WithDescription("Detected spans that could not be mapped to a single page"))
	if err != nil {
		spansDropped, _ = meter.Int64Counter("redact.spans.dropped.fallback")
	}
}

func recordPage(ctx context.Context, pr PageReport) {
	if n := len(pr.Regions); n > 0 {
		regionsApplied.Add(ctx, int64(n))
	}
	if pr.Images.Replaced > 0 {
		imagesReplaced.Add(ctx, int64(pr.Images.Replaced))
	}
	if n := pr.Images.Skipped + pr.Images.Failed; n > 0 {
		imagesSkipped.Add(ctx, int64(n))
	}
	if pr.Err != nil {
		pagesFailed.Add(ctx, 1)
	}
}
