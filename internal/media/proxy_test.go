package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/memohai/forwardbot/internal/mirror"
)

func newAttachmentServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/cat.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})
	mux.HandleFunc("/files/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})
	mux.HandleFunc("/files/big.bin", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	})
	mux.HandleFunc("/files/stream.bin", func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 8; i++ {
			_, _ = w.Write([]byte(strings.Repeat("y", 8)))
			w.(http.Flusher).Flush()
		}
	})
	mux.HandleFunc("/files/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchUsesSourceMetadata(t *testing.T) {
	t.Parallel()

	srv := newAttachmentServer(t)
	proxy := NewProxy(nil, srv.Client(), 1024, 0)

	file, err := proxy.Fetch(context.Background(), mirror.AttachmentSource{
		URL:      srv.URL + "/files/cat.png?ex=123",
		Filename: "kitten.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file.Name != "kitten.png" {
		t.Fatalf("unexpected name: %q", file.Name)
	}
	if file.ContentType != "image/png" {
		t.Fatalf("unexpected content type: %q", file.ContentType)
	}
	if string(file.Data) != "png-bytes" {
		t.Fatalf("unexpected data: %q", string(file.Data))
	}
}

func TestFetchNameFromURL(t *testing.T) {
	t.Parallel()

	srv := newAttachmentServer(t)
	proxy := NewProxy(nil, srv.Client(), 1024, 0)

	file, err := proxy.Fetch(context.Background(), mirror.AttachmentSource{URL: srv.URL + "/files/notes.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file.Name != "notes.txt" {
		t.Fatalf("unexpected name: %q", file.Name)
	}
}

func TestFetchHTTPError(t *testing.T) {
	t.Parallel()

	srv := newAttachmentServer(t)
	proxy := NewProxy(nil, srv.Client(), 1024, 0)

	_, err := proxy.Fetch(context.Background(), mirror.AttachmentSource{URL: srv.URL + "/files/gone"})
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if ferr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", ferr.StatusCode)
	}
}

func TestFetchTooLarge(t *testing.T) {
	t.Parallel()

	srv := newAttachmentServer(t)
	proxy := NewProxy(nil, srv.Client(), 16, 0)

	_, err := proxy.Fetch(context.Background(), mirror.AttachmentSource{URL: srv.URL + "/files/big.bin"})
	if !errors.Is(err, ErrAssetTooLarge) {
		t.Fatalf("expected ErrAssetTooLarge, got %v", err)
	}
}

func TestFetchTooLargeWithoutContentLength(t *testing.T) {
	t.Parallel()

	srv := newAttachmentServer(t)
	proxy := NewProxy(nil, srv.Client(), 16, 0)

	_, err := proxy.Fetch(context.Background(), mirror.AttachmentSource{URL: srv.URL + "/files/stream.bin"})
	if !errors.Is(err, ErrAssetTooLarge) {
		t.Fatalf("expected ErrAssetTooLarge, got %v", err)
	}

	file, err := NewProxy(nil, srv.Client(), 64, 0).Fetch(context.Background(), mirror.AttachmentSource{URL: srv.URL + "/files/stream.bin"})
	if err != nil {
		t.Fatalf("exact limit: unexpected error: %v", err)
	}
	if len(file.Data) != 64 {
		t.Fatalf("unexpected size: %d", len(file.Data))
	}
}

func TestFetchEmptyURL(t *testing.T) {
	t.Parallel()

	_, err := NewProxy(nil, nil, 0, time.Second).Fetch(context.Background(), mirror.AttachmentSource{})
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}

func TestFetchAllDropsFailures(t *testing.T) {
	t.Parallel()

	srv := newAttachmentServer(t)
	proxy := NewProxy(nil, srv.Client(), 1024, 0)

	files := proxy.FetchAll(context.Background(), []mirror.AttachmentSource{
		{URL: srv.URL + "/files/cat.png", Filename: "cat.png"},
		{URL: srv.URL + "/files/gone", Filename: "gone.png"},
		{URL: srv.URL + "/files/notes.txt", Filename: "notes.txt"},
		{URL: "http://127.0.0.1:1/unreachable", Filename: "down.png"},
	})

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "cat.png,notes.txt" {
		t.Fatalf("unexpected files: %v", names)
	}
}

func TestFetchAllEmpty(t *testing.T) {
	t.Parallel()

	if files := NewProxy(nil, nil, 0, 0).FetchAll(context.Background(), nil); files != nil {
		t.Fatalf("expected nil, got %v", files)
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		src         mirror.AttachmentSource
		contentType string
		want        string
	}{
		{src: mirror.AttachmentSource{Filename: " a.gif "}, want: "a.gif"},
		{src: mirror.AttachmentSource{URL: "https://cdn.example/x/y/clip.mp4?sig=1"}, want: "clip.mp4"},
		{src: mirror.AttachmentSource{URL: "https://cdn.example/"}, want: "attachment"},
		{src: mirror.AttachmentSource{URL: "https://cdn.example/"}, contentType: "image/png"},
	}
	for _, tc := range cases {
		got := fileName(tc.src, tc.contentType)
		if tc.contentType != "" {
			if !strings.HasPrefix(got, "attachment.") {
				t.Fatalf("src=%+v want extension-derived name, got %q", tc.src, got)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("src=%+v want=%q got=%q", tc.src, tc.want, got)
		}
	}
}
