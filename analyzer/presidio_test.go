package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresidioAnalyze(t *testing.T) {
	var got analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		// "Zoë Smith" starts at code point 8, byte 8, and ends at code point 17, byte 18
		_ = json.NewEncoder(w).Encode([]analyzeResult{
			{EntityType: "PERSON", Start: 8, End: 17, Score: 0.85},
		})
	}))
	defer srv.Close()

	p := NewPresidio(srv.URL+"/", time.Second, WithScoreThreshold(0.4))
	text := "Patient Zoë Smith"
	spans, err := p.Analyze(context.Background(), text, []string{"PERSON"})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "Zoë Smith", text[spans[0].Start:spans[0].End])
	assert.Equal(t, "PERSON", spans[0].EntityType)

	assert.Equal(t, text, got.Text)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, []string{"PERSON"}, got.Entities)
	assert.InDelta(t, 0.4, got.ScoreThreshold, 1e-9)
}

func TestPresidioErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{"))
		}},
		{"span outside text", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode([]analyzeResult{{EntityType: "PERSON", Start: 0, End: 99}})
		}},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("[]"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := NewPresidio(srv.URL, 50*time.Millisecond)
			_, err := p.Analyze(context.Background(), "short", nil)
			assert.Error(t, err)
		})
	}
}

func TestPresidioSupportedEntities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/supportedentities", r.URL.Path)
		assert.Equal(t, "de", r.URL.Query().Get("language"))
		_ = json.NewEncoder(w).Encode([]string{"PERSON", "LOCATION"})
	}))
	defer srv.Close()

	entities, err := NewPresidio(srv.URL, 0, WithLanguage("de")).SupportedEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"PERSON", "LOCATION"}, entities)
}

func TestPresidioRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	p := NewPresidio(srv.URL, time.Second, WithRateLimit(0.001, 1))
	_, err := p.Analyze(context.Background(), "first", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Analyze(ctx, "second", nil)
	assert.Error(t, err)
}
