package binio

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

var contentRangeRe = regexp.MustCompile(`(?i)^bytes (\d+)-(\d+)/\d+$`)

// DataReaderHTTP fetches byte ranges from a remote file via HTTP range
// requests. The server must answer with 206 Partial Content and a
// matching Content-Range header; anything else is an error the caller
// may retry.
type DataReaderHTTP struct {
	client *http.Client
	url    string
	size   uint64
}

// OpenDataReaderHTTP probes the remote file with a HEAD request and
// returns a range reader over it. Connections are kept alive so that
// successive tile fetches reuse the TCP session.
func OpenDataReaderHTTP(ctx context.Context, url string) (*DataReaderHTTP, error) {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				KeepAlive: 10 * time.Minute,
			}).DialContext,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     10 * time.Minute,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", url, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probing %s: unexpected status %s", url, resp.Status)
	}

	var size uint64
	if resp.ContentLength > 0 {
		size = uint64(resp.ContentLength)
	}
	return &DataReaderHTTP{client: client, url: url, size: size}, nil
}

func (r *DataReaderHTTP) ReadRange(ctx context.Context, rng ByteRange) (Blob, error) {
	if rng.Length == 0 {
		return EmptyBlob(), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return Blob{}, fmt.Errorf("building range request for %s: %w", r.url, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Offset, rng.End()-1))

	resp, err := r.client.Do(req)
	if err != nil {
		return Blob{}, fmt.Errorf("range %s of %s: %w", rng, r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		io.Copy(io.Discard, resp.Body)
		return Blob{}, fmt.Errorf("range %s of %s: expected 206, got %s", rng, r.url, resp.Status)
	}

	if err := checkContentRange(resp.Header.Get("Content-Range"), rng); err != nil {
		io.Copy(io.Discard, resp.Body)
		return Blob{}, fmt.Errorf("range %s of %s: %w", rng, r.url, err)
	}

	buf := make([]byte, rng.Length)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		return Blob{}, fmt.Errorf("range %s of %s: short body: %w", rng, r.url, err)
	}
	return NewBlob(buf), nil
}

// checkContentRange verifies that the server returned exactly the bytes
// that were asked for.
func checkContentRange(header string, rng ByteRange) error {
	if header == "" {
		return fmt.Errorf("response has no content-range header")
	}
	m := contentRangeRe.FindStringSubmatch(header)
	if m == nil {
		return fmt.Errorf("malformed content-range %q", header)
	}
	start, _ := strconv.ParseUint(m[1], 10, 64)
	end, _ := strconv.ParseUint(m[2], 10, 64)
	if start != rng.Offset || end != rng.End()-1 {
		return fmt.Errorf("content-range %q does not match requested range %s", header, rng)
	}
	return nil
}

func (r *DataReaderHTTP) ReadAll(ctx context.Context) (Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return Blob{}, fmt.Errorf("building request for %s: %w", r.url, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Blob{}, fmt.Errorf("fetching %s: %w", r.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Blob{}, fmt.Errorf("fetching %s: unexpected status %s", r.url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Blob{}, fmt.Errorf("fetching %s: %w", r.url, err)
	}
	return NewBlob(data), nil
}

func (r *DataReaderHTTP) Name() string {
	return r.url
}

func (r *DataReaderHTTP) Size() uint64 {
	return r.size
}

func (r *DataReaderHTTP) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
