package webpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

func TestExtractTextReturnsVisibleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Job</title><style>p{}</style></head>
<body><h1>Senior  Java Developer</h1><script>var x = 1;</script>
<p>Must know <b>Spring</b> and SQL.</p></body></html>`))
	}))
	defer server.Close()

	res := New(time.Second).ExtractText(context.Background(), server.URL)
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Text != "Job Senior Java Developer Must know Spring and SQL." {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestExtractTextReportsHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	res := New(time.Second).ExtractText(context.Background(), server.URL)
	if res.OK() || res.Failure != domain.FetchHTTPStatus || res.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExtractTextReportsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	res := New(20 * time.Millisecond).ExtractText(context.Background(), server.URL)
	if res.Failure != domain.FetchTimeout {
		t.Fatalf("expected timeout, got %+v", res)
	}
}

func TestExtractTextReportsEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><script>only()</script></body></html>`))
	}))
	defer server.Close()

	res := New(time.Second).ExtractText(context.Background(), server.URL)
	if res.Failure != domain.FetchEmpty {
		t.Fatalf("expected empty failure, got %+v", res)
	}
}

func TestExtractTextReportsTransportFailure(t *testing.T) {
	res := New(time.Second).ExtractText(context.Background(), "http://127.0.0.1:1/unreachable")
	if res.Failure != domain.FetchTransport && res.Failure != domain.FetchTimeout {
		t.Fatalf("expected transport failure, got %+v", res)
	}
}

func TestExtractTextReportsBrokenPDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 truncated"))
	}))
	defer server.Close()

	res := New(time.Second).ExtractText(context.Background(), server.URL)
	if res.Failure != domain.FetchParse {
		t.Fatalf("expected parse failure, got %+v", res)
	}
}

func TestHTMLTextCollapsesWhitespace(t *testing.T) {
	got, err := HTMLText(strings.NewReader("<div>a\n\n  b</div><div>c</div>"))
	if err != nil {
		t.Fatalf("HTMLText() error = %v", err)
	}
	if got != "a b c" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractTextReadsPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Hiring a data analyst\n\nwith <SQL> skills"))
	}))
	defer server.Close()

	res := New(time.Second).ExtractText(context.Background(), server.URL)
	if !res.OK() || res.Text != "Hiring a data analyst with <SQL> skills" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestPlainTextRejectsBinary(t *testing.T) {
	if _, err := PlainText([]byte{0xff, 0xfe, 0x00}); err == nil {
		t.Fatalf("expected error for invalid utf-8")
	}
}
