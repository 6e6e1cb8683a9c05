package client

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

func compress(t *testing.T, encoding string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch encoding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		w = zw
	default:
		return data
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("compress close: %v", err)
	}
	return buf.Bytes()
}

func TestCompressionTransport_Decodes(t *testing.T) {
	t.Parallel()
	payload := []byte(`{"results":[{"title":"Dark","first_air_date":"2017-12-01"}]}`)

	tests := []struct {
		name           string
		header         string
		bodyEncoding   string
		wantEncodingHd string
	}{
		{name: "gzip", header: "gzip", bodyEncoding: "gzip"},
		{name: "brotli", header: "br", bodyEncoding: "br"},
		{name: "zstd", header: "zstd", bodyEncoding: "zstd"},
		{name: "identity", header: "", bodyEncoding: ""},
		{name: "list uses outermost", header: "identity, gzip", bodyEncoding: "gzip"},
		{name: "whitespace and case", header: "  GZIP ", bodyEncoding: "gzip"},
		{name: "unknown left alone", header: "compress", bodyEncoding: "", wantEncodingHd: "compress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			body := compress(t, tt.bodyEncoding, payload)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Accept-Encoding"); got != acceptEncoding {
					t.Errorf("Accept-Encoding = %q, want %q", got, acceptEncoding)
				}
				if tt.header != "" {
					w.Header().Set("Content-Encoding", tt.header)
				}
				_, _ = w.Write(body)
			}))
			defer server.Close()

			c := &http.Client{Transport: newCompressionTransport(nil)}
			resp, err := c.Get(server.URL)
			if err != nil {
				t.Fatalf("GET failed: %v", err)
			}
			defer resp.Body.Close()

			got, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("body = %q, want %q", got, payload)
			}
			if enc := resp.Header.Get("Content-Encoding"); enc != tt.wantEncodingHd {
				t.Errorf("Content-Encoding = %q, want %q", enc, tt.wantEncodingHd)
			}
		})
	}
}

func TestCompressionTransport_KeepsCallerAcceptEncoding(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept-Encoding"); got != "identity" {
			t.Errorf("Accept-Encoding = %q, want identity", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := (&http.Client{Transport: newCompressionTransport(nil)}).Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestOutermostEncoding(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"":           "",
		"gzip":       "gzip",
		"gzip, br":   "br",
		" ZSTD ":     "zstd",
		"deflate,  ": "",
	}
	for in, want := range tests {
		if got := outermostEncoding(in); got != want {
			t.Errorf("outermostEncoding(%q) = %q, want %q", in, got, want)
		}
	}
}
