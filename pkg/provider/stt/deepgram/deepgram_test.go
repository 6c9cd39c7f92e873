package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sampleResponse = `{
	"results": {
		"channels": [
			{"alternatives": [{"transcript": "hello world", "confidence": 0.98}]}
		]
	}
}`

func writeTempWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFF fake wav payload"), 0o644); err != nil {
		t.Fatalf("writing temp wav: %v", err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var gotAuth, gotContentType, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	p := New("secret", WithBaseURL(srv.URL), WithModel("nova-3"), WithLanguage("en"))
	text, err := p.Transcribe(context.Background(), writeTempWAV(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Errorf("transcript = %q, want %q", text, "hello world")
	}
	if gotAuth != "Token secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "audio/wav" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotQuery != "language=en&model=nova-3&smart_format=true" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestTranscribe_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err_code":"INVALID_AUTH"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := New("bad-key", WithBaseURL(srv.URL))
	if _, err := p.Transcribe(context.Background(), writeTempWAV(t)); err == nil {
		t.Error("want error on 401, got nil")
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	t.Parallel()

	p := New("key")
	if _, err := p.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("want error for missing file, got nil")
	}
}

func TestParseTranscript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "ok", body: sampleResponse, want: "hello world"},
		{name: "empty transcript", body: `{"results":{"channels":[{"alternatives":[{"transcript":""}]}]}}`, want: ""},
		{name: "no channels", body: `{"results":{"channels":[]}}`, wantErr: true},
		{name: "no alternatives", body: `{"results":{"channels":[{"alternatives":[]}]}}`, wantErr: true},
		{name: "invalid json", body: `{`, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseTranscript([]byte(tc.body))
			if tc.wantErr {
				if err == nil {
					t.Error("want error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTranscript: %v", err)
			}
			if got != tc.want {
				t.Errorf("transcript = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAvailability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if New("").IsAvailable(ctx) {
		t.Error("provider without key reports available")
	}
	if !New("key").IsAvailable(ctx) {
		t.Error("provider with key reports unavailable")
	}
	if got := New("key").Name(); got != "deepgram" {
		t.Errorf("Name() = %s", got)
	}
}
