// Package analyzer detects personal information in text.
//
// Regex matches the recognizers of patterns/pii.yaml, optionally layered
// with a user pattern file in the same Presidio-compatible format.
// Presidio delegates to a running Presidio Analyzer service. Both return
// byte-offset spans suitable for redact.Assembler.
package analyzer
