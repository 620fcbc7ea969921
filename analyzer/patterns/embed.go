// Package patterns holds the embedded default recognizer definitions, in
// the Presidio recognizer registry YAML format.
package patterns

import _ "embed"

//go:embed pii.yaml
var piiYAML []byte

// PIIYAML returns the embedded default PII recognizers.
func PIIYAML() []byte { return piiYAML }
