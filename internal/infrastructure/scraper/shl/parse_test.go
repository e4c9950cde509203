package shl

import (
	"strings"
	"testing"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

const listingPage = `<html><body><table>
<tr><td><a href="/products/product-catalog/view/java-8-new/">Java 8 (New)</a> K S X</td></tr>
<tr><td><a href="/solutions/other">Not a product</a></td></tr>
<tr><td><a href="/products/product-catalog/view/opq32r/"><span>OPQ32r</span></a> P</td></tr>
</table></body></html>`

func TestParseListingFindsProductAnchors(t *testing.T) {
	items, err := parseListing(strings.NewReader(listingPage), "https://www.shl.com")
	if err != nil {
		t.Fatalf("parseListing() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v", items)
	}
	if items[0].Name != "Java 8 (New)" || items[0].URL != "https://www.shl.com/products/product-catalog/view/java-8-new/" {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if strings.Join(items[0].Codes, ",") != "K,S" {
		t.Fatalf("expected unknown codes dropped, got %v", items[0].Codes)
	}
	if items[1].Name != "OPQ32r" || strings.Join(items[1].Codes, ",") != "P" {
		t.Fatalf("unexpected second item %+v", items[1])
	}
}

func TestParseDetailUsesMetaDescription(t *testing.T) {
	page := `<html><head><meta name="description" content=" Multi-choice test for Java 8. "></head>
<body><h1>Java 8</h1><p>Other text</p>
<div>Approximate Completion Time in minutes = 18</div>
<div>Remote Testing available online</div>
<div>Test Type: K S</div></body></html>`
	d, err := parseDetail(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parseDetail() error = %v", err)
	}
	if d.Description != "Multi-choice test for Java 8." {
		t.Fatalf("unexpected description %q", d.Description)
	}
	if d.Duration != "18 minutes" {
		t.Fatalf("unexpected duration %q", d.Duration)
	}
	if d.RemoteTesting != domain.Yes || d.Adaptive != domain.No {
		t.Fatalf("unexpected flags remote=%s adaptive=%s", d.RemoteTesting, d.Adaptive)
	}
	if len(d.TestTypes) != 2 || d.TestTypes[0] != "Knowledge & Skills" || d.TestTypes[1] != "Simulations" {
		t.Fatalf("unexpected test types %v", d.TestTypes)
	}
}

func TestParseDetailFallsBackToHeadingParagraph(t *testing.T) {
	page := `<html><body><h2>Verify G+</h2><div>x</div><p>General <b>ability</b> test.</p>
<div>Duration: about 36 minutes</div><div>Uses IRT scoring</div></body></html>`
	d, err := parseDetail(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parseDetail() error = %v", err)
	}
	if d.Description != "Generalabilitytest." {
		t.Fatalf("unexpected description %q", d.Description)
	}
	if d.Duration != "36 minutes" {
		t.Fatalf("unexpected duration %q", d.Duration)
	}
	if d.Adaptive != domain.Yes || d.RemoteTesting != domain.No {
		t.Fatalf("unexpected flags remote=%s adaptive=%s", d.RemoteTesting, d.Adaptive)
	}
	if len(d.TestTypes) != 0 {
		t.Fatalf("expected no test types, got %v", d.TestTypes)
	}
}
