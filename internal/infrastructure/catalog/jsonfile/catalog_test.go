package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

func TestSaveThenLoadKeepsOrderAndFields(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "nested", "assessments.json"))
	in := []domain.CatalogRecord{
		{Name: "Java", URL: "/java", RemoteTesting: domain.Yes, Adaptive: domain.No, TestTypes: []string{"Knowledge & Skills"}, PrimaryType: "Knowledge & Skills"},
		{Name: "OPQ", URL: "/opq", Duration: "25 minutes", TestTypes: []string{}},
	}
	if err := c.SaveRecords(context.Background(), in); err != nil {
		t.Fatalf("SaveRecords() error = %v", err)
	}
	out, err := c.LoadRecords(context.Background())
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	if len(out) != 2 || out[0].Name != "Java" || out[1].Duration != "25 minutes" || out[0].PrimaryType != "Knowledge & Skills" {
		t.Fatalf("unexpected records %+v", out)
	}
}

func TestSaveUsesWireFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assessments.json")
	c := New(path)
	if err := c.SaveRecords(context.Background(), []domain.CatalogRecord{{Name: "A", URL: "/a", PrimaryType: "Simulations"}}); err != nil {
		t.Fatalf("SaveRecords() error = %v", err)
	}
	raw, _ := os.ReadFile(path)
	for _, key := range []string{`"remote_testing"`, `"test_types"`, `"type": "Simulations"`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("expected %s in %s", key, raw)
		}
	}
}

func TestLoadMissingFileIsNotFound(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.json")).LoadRecords(context.Background())
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
