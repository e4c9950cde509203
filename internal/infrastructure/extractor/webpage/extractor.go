// Package webpage fetches a URL and reduces it to visible text for use as a
// query. HTML and PDF bodies are supported.
package webpage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxBytes = 4 << 20
	defaultAgent    = "assessment-recommender/1.0"
)

type Extractor struct {
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
	userAgent  string
}

type Option func(*Extractor)

func WithHTTPClient(client *http.Client) Option {
	return func(e *Extractor) {
		if client != nil {
			e.httpClient = client
		}
	}
}

func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(e *Extractor) {
		if strings.TrimSpace(ua) != "" {
			e.userAgent = ua
		}
	}
}

func New(timeout time.Duration, opts ...Option) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e := &Extractor{
		httpClient: &http.Client{},
		timeout:    timeout,
		maxBytes:   DefaultMaxBytes,
		userAgent:  defaultAgent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractText never returns an error value; failures are reported through the
// result kind so callers can degrade uniformly.
func (e *Extractor) ExtractText(ctx context.Context, url string) domain.FetchResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.FetchResult{Failure: domain.FetchTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.5")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return domain.FetchResult{Failure: classifyTransport(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return domain.FetchResult{
			Failure:    domain.FetchHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("fetch %s: %s", url, resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes))
	if err != nil {
		return domain.FetchResult{Failure: classifyTransport(ctx, err), StatusCode: resp.StatusCode, Err: err}
	}

	var text string
	contentType := resp.Header.Get("Content-Type")
	switch {
	case isPDF(contentType, body):
		text, err = PDFText(body)
	case isPlainText(contentType):
		text, err = PlainText(body)
	default:
		text, err = HTMLText(bytes.NewReader(body))
	}
	if err != nil {
		return domain.FetchResult{Failure: domain.FetchParse, StatusCode: resp.StatusCode, Err: err}
	}
	if text == "" {
		return domain.FetchResult{Failure: domain.FetchEmpty, StatusCode: resp.StatusCode}
	}
	return domain.FetchResult{Text: text, StatusCode: resp.StatusCode}
}

func classifyTransport(ctx context.Context, err error) domain.FetchFailure {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.FetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FetchTimeout
	}
	return domain.FetchTransport
}

func isPDF(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/pdf" {
		return true
	}
	return bytes.HasPrefix(body, []byte("%PDF-"))
}

var skippedElements = map[atom.Atom]struct{}{
	atom.Script:   {},
	atom.Style:    {},
	atom.Noscript: {},
	atom.Template: {},
}

// HTMLText returns the document's visible text, whitespace-collapsed and
// joined with single spaces.
func HTMLText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedElements[n.DataAtom]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}

// PDFText extracts the plain text layer of a PDF document.
func PDFText(body []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.Join(strings.Fields(string(raw)), " "), nil
}
