package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PratikDhanave/identity-sync-service/internal/apperr"
)

// ObjectReader opens bucket objects. GCSSource implements it.
type ObjectReader interface {
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// Fetcher downloads feed text from an http(s) link or, when an
// ObjectReader is configured, from a gs://bucket/object link.
type Fetcher struct {
	http     *http.Client
	objects  ObjectReader
	maxBytes int64
}

// NewFetcher builds a Fetcher. objects may be nil to disable gs:// links.
func NewFetcher(httpClient *http.Client, objects ObjectReader, maxBytes int64) *Fetcher {
	return &Fetcher{http: httpClient, objects: objects, maxBytes: maxBytes}
}

// Fetch returns the full body behind link.
func (f *Fetcher) Fetch(ctx context.Context, link string) (string, error) {
	const op = "feed.Fetch"

	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return "", apperr.InvalidInput(op, "feed link must be an absolute http(s) or gs:// URL")
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "http", "https":
		body, err = f.get(ctx, u)
	case "gs":
		if f.objects == nil {
			return "", apperr.InvalidInput(op, "gs:// links are not enabled")
		}
		object := strings.TrimPrefix(u.Path, "/")
		if object == "" {
			return "", apperr.InvalidInput(op, "gs:// link has no object path")
		}
		body, err = f.objects.Open(ctx, u.Host, object)
	default:
		return "", apperr.InvalidInput(op, fmt.Sprintf("unsupported feed link scheme %q", u.Scheme))
	}
	if err != nil {
		return "", apperr.WrapMessage(apperr.KindFetchFailure, op, "feed could not be fetched", err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return "", apperr.WrapMessage(apperr.KindFetchFailure, op, "feed could not be fetched", err)
	}
	if int64(len(data)) > f.maxBytes {
		return "", apperr.WrapMessage(apperr.KindFetchFailure, op,
			fmt.Sprintf("feed larger than %d bytes", f.maxBytes), errors.New("size limit exceeded"))
	}
	return string(data), nil
}

func (f *Fetcher) get(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", u.Redacted(), resp.StatusCode)
	}
	return resp.Body, nil
}
