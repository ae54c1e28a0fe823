package parser

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const userAgent = "ProductImporter/1.0"

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: 60 * time.Second}
	}
	return client
}

// openFeed returns the decompressed payload behind a feed location. http(s) URLs are
// fetched; file:// URLs and bare paths are read from disk.
func openFeed(ctx context.Context, client *http.Client, location string) (io.ReadCloser, error) {
	var (
		body io.ReadCloser
		err  error
	)

	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		body, err = fetchHTTP(ctx, client, location)
	case strings.HasPrefix(location, "file://"):
		parsed, perr := url.Parse(location)
		if perr != nil {
			return nil, fmt.Errorf("invalid feed url %s: %w", location, perr)
		}
		body, err = os.Open(parsed.Path)
	default:
		body, err = os.Open(location)
	}
	if err != nil {
		return nil, err
	}

	return maybeGunzip(body)
}

func fetchHTTP(ctx context.Context, client *http.Client, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("feed %s returned %s", location, resp.Status)
	}
	return resp.Body, nil
}

// maybeGunzip sniffs the gzip magic bytes so .gz dumps and plain XML share one path.
func maybeGunzip(body io.ReadCloser) (io.ReadCloser, error) {
	head := make([]byte, 2)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		body.Close()
		return nil, fmt.Errorf("read feed header: %w", err)
	}
	stream := io.MultiReader(bytes.NewReader(head[:n]), body)

	if n == 2 && head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(stream)
		if err != nil {
			body.Close()
			return nil, fmt.Errorf("open gzip feed: %w", err)
		}
		return &stackedCloser{Reader: gz, closers: []io.Closer{gz, body}}, nil
	}
	return &stackedCloser{Reader: stream, closers: []io.Closer{body}}, nil
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// parsePrice reads a shelf price. Anything unreadable becomes zero so the
// aggregator can count it as an invalid observation instead of losing it silently.
// A comma is a thousands separator when a dot is also present, and a decimal comma
// only when it is the sole comma followed by one or two digits. Other comma forms
// such as "1,234" are ambiguous and read as zero.
func parsePrice(raw string) decimal.Decimal {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "₪")
	cleaned = strings.TrimSuffix(cleaned, "₪")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			whole, frac, _ := strings.Cut(cleaned, ",")
			if strings.Contains(frac, ",") || len(frac) == 0 || len(frac) > 2 {
				return decimal.Zero
			}
			cleaned = whole + "." + frac
		}
	}
	if cleaned == "" {
		return decimal.Zero
	}
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return price
}
