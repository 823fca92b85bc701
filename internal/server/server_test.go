package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/jburnhams/image-stitch-sub000/pkg/decode"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := New("test", decode.NewCache(), charmlog.New(io.Discard))
	srv := httptest.NewServer(s.Router(30 * time.Second))
	t.Cleanup(srv.Close)
	return srv
}

// setupImageServer hosts solid-color source PNGs for composite
// requests to fetch.
func setupImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	serve := func(path string, w, h int, c color.NRGBA) {
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetNRGBA(x, y, c)
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			t.Fatal(err)
		}
		mux.HandleFunc(path, func(rw http.ResponseWriter, _ *http.Request) {
			rw.Write(buf.Bytes())
		})
	}
	serve("/red.png", 10, 10, color.NRGBA{R: 255, A: 255})
	serve("/blue.png", 10, 10, color.NRGBA{B: 255, A: 255})
	serve("/tall.png", 5, 20, color.NRGBA{G: 255, A: 255})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postComposite(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/composite", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /composite: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
	if health.Version != "test" {
		t.Errorf("version = %q, want test", health.Version)
	}
	if time.Since(health.Timestamp) > time.Minute {
		t.Errorf("stale timestamp %v", health.Timestamp)
	}
}

func TestCreateCompositeStreamsPNG(t *testing.T) {
	imgs := setupImageServer(t)
	srv := setupTestServer(t)

	body := `{
		"sources": ["` + imgs.URL + `/red.png", "` + imgs.URL + `/blue.png"],
		"layout": {"columns": 2}
	}`
	resp := postComposite(t, srv, body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 20 || bounds.Dy() != 10 {
		t.Errorf("output = %dx%d, want 20x10", bounds.Dx(), bounds.Dy())
	}
	if r, _, _, _ := img.At(5, 5).RGBA(); r>>8 != 255 {
		t.Errorf("left half should be red, got r=%d", r>>8)
	}
	if _, _, b, _ := img.At(15, 5).RGBA(); b>>8 != 255 {
		t.Errorf("right half should be blue, got b=%d", b>>8)
	}
}

func TestCreateCompositeWithPaddingAndBackground(t *testing.T) {
	imgs := setupImageServer(t)
	srv := setupTestServer(t)

	body := `{
		"sources": ["` + imgs.URL + `/red.png", "` + imgs.URL + `/tall.png"],
		"layout": {"columns": 2},
		"background": "white"
	}`
	resp := postComposite(t, srv, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if img.Bounds().Dx() != 15 || img.Bounds().Dy() != 20 {
		t.Fatalf("output = %dx%d, want 15x20", img.Bounds().Dx(), img.Bounds().Dy())
	}
	// Below the 10px-tall red image: white padding.
	r, g, b, _ := img.At(5, 15).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("padding pixel = (%d,%d,%d), want white", r>>8, g>>8, b>>8)
	}
}

func TestCreateCompositeValidation(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
		wantHTTP int
	}{
		{"invalid json", "{", "INVALID_JSON", http.StatusBadRequest},
		{"no sources", `{"sources": [], "layout": {"columns": 1}}`, "VALIDATION_ERROR", http.StatusBadRequest},
		{"no layout", `{"sources": ["http://example.invalid/x.png"], "layout": {}}`, "VALIDATION_ERROR", http.StatusBadRequest},
		{"bad background", `{"sources": ["http://example.invalid/x.png"], "layout": {"columns": 1}, "background": "chartreuse-ish"}`, "VALIDATION_ERROR", http.StatusBadRequest},
		{"unreachable source", `{"sources": ["http://127.0.0.1:1/x.png"], "layout": {"columns": 1}}`, "SOURCE_ERROR", http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postComposite(t, srv, tc.body)
			if resp.StatusCode != tc.wantHTTP {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.wantHTTP)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if errResp.Error != tc.wantCode {
				t.Errorf("error code = %q, want %q", errResp.Error, tc.wantCode)
			}
		})
	}
}

func TestCreateCompositeNonImageSource(t *testing.T) {
	notImage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "<html>not an image</html>")
	}))
	defer notImage.Close()

	srv := setupTestServer(t)
	resp := postComposite(t, srv, `{"sources": ["`+notImage.URL+`"], "layout": {"columns": 1}}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}
