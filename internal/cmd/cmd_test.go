package cmd

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alzaheer/privacyshield/document"
	"github.com/alzaheer/privacyshield/faceblur"
	"github.com/alzaheer/privacyshield/internal/config"
	"github.com/alzaheer/privacyshield/internal/pdftest"
	"github.com/alzaheer/privacyshield/internal/server"
	"github.com/alzaheer/privacyshield/text"
)

// run executes the CLI with args and stdin and returns what it printed
// to stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root, a := newRootCommand()
	t.Cleanup(func() { _ = a.shutdown() })
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func pdfText(t *testing.T, path string) string {
	t.Helper()
	doc, err := document.Open(path)
	require.NoError(t, err)
	defer doc.Close()
	list, err := doc.Pages()
	require.NoError(t, err)
	var sb strings.Builder
	for _, p := range list {
		layout, err := text.NewExtractor(doc.MustResolve).ExtractPage(p)
		require.NoError(t, err)
		sb.WriteString(layout.Text)
	}
	return sb.String()
}

func TestRootCommandHasExpectedSubcommands(t *testing.T) {
	root, _ := newRootCommand()
	registered := make(map[string]bool)
	for _, c := range root.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range []string{"pdf", "text", "image", "entities", "serve", "version"} {
		assert.True(t, registered[name], "subcommand %q should be registered", name)
	}
}

func TestRootCommandGlobalFlags(t *testing.T) {
	root, _ := newRootCommand()
	for _, name := range []string{"config", "verbose", "log-level", "log-format", "otel", "entities", "analyzer", "presidio-url", "patterns", "cascade"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "flag %q should be registered", name)
	}
}

func TestHelpOutput(t *testing.T) {
	out, err := run(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "removes personal information")
	assert.Contains(t, out, "pdf")
	assert.Contains(t, out, "serve")
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "dev", Version)
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "privacyshield dev")
	assert.Contains(t, out, "Commit: none")
}

func TestTextFromStdin(t *testing.T) {
	out, err := run(t, "Mail jane@example.org today", "text")
	require.NoError(t, err)
	assert.Equal(t, "Mail <EMAIL_ADDRESS> today", out)
}

func TestTextJSONAndEntityFilter(t *testing.T) {
	path := writeFile(t, "note.txt", []byte("Mail jane@example.org today"))

	out, err := run(t, "", "text", "--json", path)
	require.NoError(t, err)
	var resp server.TextResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Mail <EMAIL_ADDRESS> today", resp.Text)
	require.Len(t, resp.Spans, 1)
	assert.Equal(t, 5, resp.Spans[0].Start)

	out, err = run(t, "", "text", "--entities", "PHONE_NUMBER", path)
	require.NoError(t, err)
	assert.Equal(t, "Mail jane@example.org today", out)
}

func TestTextRejectsPDF(t *testing.T) {
	path := writeFile(t, "doc.pdf", pdftest.TextDocument("hello"))
	_, err := run(t, "", "text", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not text")
}

func TestPDFExplicitOutput(t *testing.T) {
	in := writeFile(t, "record.pdf", pdftest.TextDocument("Contact jane@example.org today.\nKeep this line."))
	outPath := filepath.Join(t.TempDir(), "clean.pdf")

	out, err := run(t, "", "pdf", in, "-o", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+outPath)
	assert.Contains(t, out, "regions:  1")

	got := pdfText(t, outPath)
	assert.NotContains(t, got, "jane@example.org")
	assert.Contains(t, got, "Keep this line.")
}

func TestPDFDefaultOutputInOutputDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PRIVACYSHIELD_OUTPUT_DIR", dir)
	in := writeFile(t, "scan.pdf", pdftest.TextDocument("Contact jane@example.org today."))

	_, err := run(t, "", "pdf", "--no-redact", in)
	require.NoError(t, err)
	assert.Contains(t, pdfText(t, filepath.Join(dir, "deidentified_scan.pdf")), "jane@example.org")
}

func TestPDFRejectsOtherFormats(t *testing.T) {
	in := writeFile(t, "fake.pdf", []byte("just some text"))
	_, err := run(t, "", "pdf", in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a PDF")

	_, err = run(t, "", "pdf", filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
}

func TestImageCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, pdftest.Gradient(40, 30)))
	in := writeFile(t, "photo.png", buf.Bytes())
	dir := t.TempDir()
	t.Setenv("PRIVACYSHIELD_OUTPUT_DIR", dir)

	_, err := run(t, "", "image", in)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "blurred_photo.jpg"))
	require.NoError(t, err)
	_, kind, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", kind)

	_, err = run(t, "", "image", "--preview", in)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "preview_photo.jpg"))

	out, err := run(t, "", "image", "--stats", in)
	require.NoError(t, err)
	var stats faceblur.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 40, stats.Width)
	assert.Zero(t, stats.Faces)

	txt := writeFile(t, "notes.png", []byte("not an image"))
	_, err = run(t, "", "image", txt)
	require.Error(t, err)
}

func TestImageStatsUsesBundledCascade(t *testing.T) {
	out, err := run(t, "", "image", "--stats", filepath.Join("..", "..", "faceblur", "testdata", "sample.jpg"))
	require.NoError(t, err)
	var stats faceblur.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Positive(t, stats.Faces)
}

func TestEntities(t *testing.T) {
	out, err := run(t, "", "entities")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines, "EMAIL_ADDRESS")
	assert.Contains(t, lines, "CREDIT_CARD")
}

func TestConfigErrors(t *testing.T) {
	_, err := run(t, "", "entities", "--analyzer", "spacy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzer.backend")

	_, err = run(t, "", "entities", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	_, err = run(t, "", "entities", "--cascade", writeFile(t, "facefinder", []byte{1, 2}))
	require.NoError(t, err, "entities does not load the face cascade")

	_, err = run(t, "", "image", "--cascade", writeFile(t, "facefinder", []byte{1, 2}), writeFile(t, "a.png", pngOf(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "face cascade")
}

func TestConfigFileIsRead(t *testing.T) {
	cfgPath := writeFile(t, "privacyshield.yaml", []byte("pii_entities: [PHONE_NUMBER]\n"))
	out, err := run(t, "Mail jane@example.org", "text", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "Mail jane@example.org", out)
}

func TestBuildAnalyzerBackends(t *testing.T) {
	cfg, err := config.Load(config.New())
	require.NoError(t, err)

	a, err := buildAnalyzer(cfg)
	require.NoError(t, err)
	assert.NotNil(t, a)

	cfg.Analyzer.Backend = config.BackendPresidio
	cfg.Analyzer.RateLimit = 2
	a, err = buildAnalyzer(cfg)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	setupLogging(&buf, "warn", "json", false)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	setupLogging(&buf, "bogus", "console", true)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	setupLogging(&buf, "info", "console", false)
}

func TestOutputPathAndStem(t *testing.T) {
	assert.Equal(t, "x.pdf", outputPath("x.pdf", "out", "y.pdf"))
	assert.Equal(t, filepath.Join("out", "y.pdf"), outputPath("", "out", "y.pdf"))
	assert.Equal(t, "report.v2", stem("/tmp/report.v2.pdf"))
}

func pngOf(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, pdftest.Gradient(8, 8)))
	return buf.Bytes()
}
