package shl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

func catalogServer(t *testing.T, flaky *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(catalogPath, func(w http.ResponseWriter, r *http.Request) {
		typ := r.URL.Query().Get("type")
		start := r.URL.Query().Get("start")
		switch {
		case typ == "2" && start == "0":
			fmt.Fprint(w, `<a href="/products/product-catalog/view/a/">A</a> K`)
		case typ == "1" && start == "0":
			fmt.Fprint(w, `<a href="/products/product-catalog/view/b/">B</a> P
<a href="/products/product-catalog/view/a/">A dup</a> K`)
		default:
			fmt.Fprint(w, `<html><body>no products</body></html>`)
		}
	})
	mux.HandleFunc("/products/product-catalog/view/a/", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(flaky, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `<meta name="description" content="Test A"><div>Test Type: K</div>`)
	})
	mux.HandleFunc("/products/product-catalog/view/b/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

func TestScrapeBuildsRecordsInListingOrder(t *testing.T) {
	var flaky int32
	server := catalogServer(t, &flaky)
	defer server.Close()

	s := New(Config{BaseURL: server.URL, Concurrency: 2, RetryAttempts: 3}, nil)
	records, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected deduped records, got %+v", records)
	}

	a := records[0]
	if a.Name != "A" || a.URL != server.URL+"/products/product-catalog/view/a/" {
		t.Fatalf("unexpected first record %+v", a)
	}
	if a.Description != "Test A" || a.PrimaryType != "Knowledge & Skills" {
		t.Fatalf("expected detail after retry, got %+v", a)
	}
	if atomic.LoadInt32(&flaky) != 2 {
		t.Fatalf("expected one retry for detail page, got %d calls", flaky)
	}

	b := records[1]
	if b.Name != "B" || b.Description != "" || b.RemoteTesting != domain.No {
		t.Fatalf("expected degraded record, got %+v", b)
	}
	if len(b.TestTypes) != 1 || b.TestTypes[0] != "Personality & Behavior" || b.PrimaryType != "Personality & Behavior" {
		t.Fatalf("expected listing codes on degraded record, got %+v", b)
	}
}

func TestScrapeFailsWhenListingUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	if _, err := New(Config{BaseURL: server.URL, RetryAttempts: 1}, nil).Scrape(context.Background()); err == nil {
		t.Fatalf("expected listing error")
	}
}

func TestRunIndexedWaitsForAcceptedTasksOnSubmitFailure(t *testing.T) {
	var finished atomic.Bool
	calls := 0
	submit := func(task func()) error {
		calls++
		if calls > 1 {
			return errors.New("pool closed")
		}
		go task()
		return nil
	}

	err := runIndexed(submit, 3, func(i int) {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	if err == nil {
		t.Fatalf("expected submit error")
	}
	if !finished.Load() {
		t.Fatalf("runIndexed returned before the accepted task finished")
	}
}
