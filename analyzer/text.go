package analyzer

import (
	"context"
	"sort"
	"strings"

	"github.com/alzaheer/privacyshield/model"
)

// Analyzer finds PII spans in text. Both Regex and Presidio implement it.
type Analyzer interface {
	Analyze(ctx context.Context, text string, entities []string) ([]model.PIISpan, error)
	SupportedEntities(ctx context.Context) ([]string, error)
}

// RedactText replaces every detected span with "<ENTITY_TYPE>". Spans
// that overlap an earlier one are ignored. Text without PII, including
// blank text, is returned unchanged.
func RedactText(ctx context.Context, a Analyzer, text string, entities []string) (string, []model.PIISpan, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil, nil
	}
	spans, err := a.Analyze(ctx, text, entities)
	if err != nil {
		return text, nil, err
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	var sb strings.Builder
	var applied []model.PIISpan
	pos := 0
	for _, s := range spans {
		if s.Start < pos || s.End > len(text) || s.Start >= s.End {
			continue
		}
		sb.WriteString(text[pos:s.Start])
		sb.WriteString("<" + s.EntityType + ">")
		pos = s.End
		applied = append(applied, s)
	}
	sb.WriteString(text[pos:])
	return sb.String(), applied, nil
}

// DefaultEntities is the entity list used when none is configured.
var DefaultEntities = []string{
	"PERSON",
	"EMAIL_ADDRESS",
	"PHONE_NUMBER",
	"CREDIT_CARD",
	"IBAN_CODE",
	"IP_ADDRESS",
	"DATE_TIME",
	"URL",
	"US_SSN",
	"US_DRIVER_LICENSE",
	"US_PASSPORT",
	"MEDICAL_LICENSE",
	"US_BANK_NUMBER",
}
