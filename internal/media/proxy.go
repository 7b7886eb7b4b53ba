package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memohai/forwardbot/internal/mirror"
)

const (
	defaultFileName = "attachment"

	// MaxAttachmentBytes is the default upload size accepted by webhooks.
	MaxAttachmentBytes int64 = 25 * 1024 * 1024
)

// Proxy downloads source attachments so they can be re-uploaded with a relayed
// message.
type Proxy struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// NewProxy creates a Proxy. A nil client gets a default client with timeout;
// maxBytes <= 0 uses MaxAttachmentBytes.
func NewProxy(log *slog.Logger, client *http.Client, maxBytes int64, timeout time.Duration) *Proxy {
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if maxBytes <= 0 {
		maxBytes = MaxAttachmentBytes
	}
	return &Proxy{
		client:   client,
		maxBytes: maxBytes,
		logger:   log.With(slog.String("component", "attachments")),
	}
}

// Fetch downloads one attachment.
func (p *Proxy) Fetch(ctx context.Context, src mirror.AttachmentSource) (mirror.File, error) {
	rawURL := strings.TrimSpace(src.URL)
	if rawURL == "" {
		return mirror.File{}, &FetchError{URL: rawURL, Err: ErrInvalidSource}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return mirror.File{}, &FetchError{URL: rawURL, Err: fmt.Errorf("%w: %v", ErrInvalidSource, err)}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return mirror.File{}, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mirror.File{}, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > p.maxBytes {
		return mirror.File{}, &FetchError{URL: rawURL, Err: fmt.Errorf("%w: %d bytes", ErrAssetTooLarge, resp.ContentLength)}
	}
	data, err := readBody(resp.Body, p.maxBytes)
	if err != nil {
		return mirror.File{}, &FetchError{URL: rawURL, Err: err}
	}

	contentType := strings.TrimSpace(src.ContentType)
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	return mirror.File{
		Name:        fileName(src, contentType),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// FetchAll downloads every source concurrently. Failures are logged and
// dropped; one failure never cancels the other downloads. The result order is
// completion order.
func (p *Proxy) FetchAll(ctx context.Context, sources []mirror.AttachmentSource) []mirror.File {
	if len(sources) == 0 {
		return nil
	}
	var (
		mu    sync.Mutex
		g     errgroup.Group
		files = make([]mirror.File, 0, len(sources))
	)
	for _, src := range sources {
		g.Go(func() error {
			file, err := p.Fetch(ctx, src)
			if err != nil {
				p.logger.Warn("attachment proxy failed",
					slog.String("url", src.URL),
					slog.String("filename", src.Filename),
					slog.Any("error", err),
				)
				return nil
			}
			mu.Lock()
			files = append(files, file)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return files
}

// readBody reads at most maxBytes. Servers may omit Content-Length, so the
// limit is enforced on the stream as well.
func readBody(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrAssetTooLarge, maxBytes)
	}
	return data, nil
}

func fileName(src mirror.AttachmentSource, contentType string) string {
	if name := strings.TrimSpace(src.Filename); name != "" {
		return name
	}
	if u, err := url.Parse(src.URL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	if contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			return defaultFileName + exts[0]
		}
	}
	return defaultFileName
}
