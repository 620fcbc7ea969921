package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alzaheer/privacyshield/analyzer"
	"github.com/alzaheer/privacyshield/format"
	"github.com/alzaheer/privacyshield/internal/otel"
	"github.com/alzaheer/privacyshield/model"
	"github.com/alzaheer/privacyshield/redact"
)

// Response headers describing a PDF run.
const (
	HeaderRunID          = "X-Run-Id"
	HeaderRegions        = "X-Redaction-Regions"
	HeaderImagesReplaced = "X-Images-Replaced"
	HeaderPageFailures   = "X-Page-Failures"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.analyzer.SupportedEntities(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "analyzer_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"entities": entities})
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	data, name, ok := readUpload(w, r)
	if !ok {
		return
	}
	if format.DetectFromMagic(data) != format.PDF {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "body is not a PDF document")
		return
	}

	var out bytes.Buffer
	report, err := s.assembler.DeidentifyBytes(r.Context(), data, &out, opts)
	if err != nil {
		switch {
		case errors.Is(err, redact.ErrSourceUnreadable):
			writeError(w, http.StatusUnprocessableEntity, "unreadable_pdf", err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "cancelled", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "deidentify_failed", err.Error())
		}
		return
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("pages", len(report.Pages)).
		Int("regions", report.Regions()).
		Int("images_replaced", report.ImagesReplaced()).
		Int("failures", len(report.Failures())).
		Func(otel.LogTraceFields(r.Context())).
		Msg("pdf_deidentified")

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": OutputName(name),
	}))
	w.Header().Set(HeaderRunID, report.RunID)
	w.Header().Set(HeaderRegions, strconv.Itoa(report.Regions()))
	w.Header().Set(HeaderImagesReplaced, strconv.Itoa(report.ImagesReplaced()))
	w.Header().Set(HeaderPageFailures, strconv.Itoa(len(report.Failures())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Bytes())
}

// TextRequest is the body of POST /v1/deidentify/text.
type TextRequest struct {
	Text     string   `json:"text"`
	Entities []string `json:"entities,omitempty"`
}

// TextResponse is the reply of POST /v1/deidentify/text.
type TextResponse struct {
	Text  string          `json:"text"`
	Spans []model.PIISpan `json:"entities_found"`
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return
	}
	entities := normalizeEntities(req.Entities)
	if len(entities) == 0 {
		entities = s.defaults.PIIEntityTypes
	}
	redacted, spans, err := analyzer.RedactText(r.Context(), s.analyzer, req.Text, entities)
	if err != nil {
		writeError(w, http.StatusBadGateway, "analyzer_unavailable", err.Error())
		return
	}
	if spans == nil {
		spans = []model.PIISpan{}
	}
	writeJSON(w, http.StatusOK, TextResponse{Text: redacted, Spans: spans})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	data, _, ok := readUpload(w, r)
	if !ok {
		return
	}
	if !format.DetectFromMagic(data).IsImage() {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "body is not a PNG or JPEG image")
		return
	}
	var out []byte
	if preview, _ := strconv.ParseBool(r.URL.Query().Get("preview")); preview {
		out = s.blurrer.Preview(data)
	} else {
		out = s.blurrer.Blur(r.Context(), data)
	}
	w.Header().Set("Content-Type", http.DetectContentType(out))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleFaceStats(w http.ResponseWriter, r *http.Request) {
	data, _, ok := readUpload(w, r)
	if !ok {
		return
	}
	stats, err := s.blurrer.Stats(data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "unreadable_image", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// requestOptions overlays the query parameters redact_pii, blur_faces,
// entities and label on the server defaults.
func (s *Server) requestOptions(r *http.Request) (redact.Options, error) {
	opts := s.defaults
	q := r.URL.Query()
	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"redact_pii", &opts.RedactPII},
		{"blur_faces", &opts.BlurFaces},
	} {
		raw := q.Get(b.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("%s: %q is not a boolean", b.key, raw)
		}
		*b.dst = v
	}
	if e := normalizeEntities(strings.Split(q.Get("entities"), ",")); len(e) > 0 {
		opts.PIIEntityTypes = e
	}
	if label := q.Get("label"); label != "" {
		opts.Label = label
	}
	return opts, nil
}

func normalizeEntities(in []string) []string {
	var out []string
	for _, e := range in {
		if e = strings.ToUpper(strings.TrimSpace(e)); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// readUpload returns the request payload: the "file" part of a multipart
// form, or the raw body otherwise. On failure it writes the error reply.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	var (
		src  io.Reader = r.Body
		name string
	)
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			if isTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
			} else {
				writeError(w, http.StatusBadRequest, "bad_request", "missing file part: "+err.Error())
			}
			return nil, "", false
		}
		defer f.Close()
		src, name = f, hdr.Filename
	}
	data, err := io.ReadAll(src)
	if err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
		} else {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		}
		return nil, "", false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "empty upload")
		return nil, "", false
	}
	return data, name, true
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// OutputName returns the download name for a de-identified upload:
// "deidentified_<stem>.pdf", with "document" standing in for a missing name.
func OutputName(upload string) string {
	stem := strings.TrimSuffix(filepath.Base(upload), filepath.Ext(upload))
	if stem == "" || stem == "." || stem == "/" {
		stem = "document"
	}
	return "deidentified_" + stem + ".pdf"
}
