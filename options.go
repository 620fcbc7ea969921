package privacyshield

import (
	"github.com/rs/zerolog"

	"github.com/alzaheer/privacyshield/redact"
)

// shieldOptions holds what a Shield will do.
type shieldOptions struct {
	redactPII bool
	blurFaces bool
	entities  []string // nil means every supported entity
	label     string

	analyzer redact.Analyzer // nil means the built-in regex analyzer
	blurrer  redact.Blurrer  // nil means a blurrer without face detection
	logger   *zerolog.Logger
}

func defaultOptions() shieldOptions {
	return shieldOptions{
		redactPII: true,
		blurFaces: true,
	}
}

// clone copies the options, including the entity slice.
func (o shieldOptions) clone() shieldOptions {
	c := o
	if o.entities != nil {
		c.entities = append([]string(nil), o.entities...)
	}
	return c
}

func (o shieldOptions) redactOptions() redact.Options {
	return redact.Options{
		RedactPII:      o.redactPII,
		BlurFaces:      o.blurFaces,
		PIIEntityTypes: o.entities,
		Label:          o.label,
	}
}
