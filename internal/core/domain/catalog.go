package domain

import (
	"fmt"
	"strings"
)

type YesNo string

const (
	Yes YesNo = "Yes"
	No  YesNo = "No"
)

// ParseYesNo maps free-form flags onto Yes/No; anything unrecognised is No.
func ParseYesNo(v string) YesNo {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1":
		return Yes
	default:
		return No
	}
}

// TestTypeLabels maps catalog category codes to their labels.
var TestTypeLabels = map[string]string{
	"A": "Ability & Aptitude",
	"B": "Biodata & Situational Judgement",
	"C": "Competencies",
	"D": "Development & 360",
	"E": "Assessment Exercises",
	"K": "Knowledge & Skills",
	"P": "Personality & Behavior",
	"S": "Simulations",
}

// LabelsForCodes keeps known codes in order and drops the rest.
func LabelsForCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if label, ok := TestTypeLabels[strings.TrimSpace(code)]; ok {
			out = append(out, label)
		}
	}
	return out
}

// CatalogRecord is one catalog item. Its position in the record list is its
// row in every derived index.
type CatalogRecord struct {
	Name          string   `json:"name"`
	URL           string   `json:"url"`
	Description   string   `json:"description"`
	Duration      string   `json:"duration"`
	RemoteTesting YesNo    `json:"remote_testing"`
	Adaptive      YesNo    `json:"adaptive"`
	TestTypes     []string `json:"test_types"`
	PrimaryType   string   `json:"type"`
}

// IndexText is the text both indices are built from and the reranker scores.
func (r CatalogRecord) IndexText() string {
	return r.Name + " " + r.Description
}

// Normalize fills derived fields so that every stored record has the same shape.
func (r CatalogRecord) Normalize() CatalogRecord {
	r.Name = strings.TrimSpace(r.Name)
	r.URL = strings.TrimSpace(r.URL)
	r.Description = strings.TrimSpace(r.Description)
	r.Duration = strings.TrimSpace(r.Duration)
	r.RemoteTesting = ParseYesNo(string(r.RemoteTesting))
	r.Adaptive = ParseYesNo(string(r.Adaptive))
	if r.TestTypes == nil {
		r.TestTypes = []string{}
	}
	if r.PrimaryType == "" && len(r.TestTypes) > 0 {
		r.PrimaryType = r.TestTypes[0]
	}
	return r
}

func (r CatalogRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: record name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("%w: record url is required for %q", ErrInvalidInput, r.Name)
	}
	return nil
}

// NormalizeRecords validates and normalizes an ingestion output in order.
func NormalizeRecords(records []CatalogRecord) ([]CatalogRecord, error) {
	out := make([]CatalogRecord, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = rec.Normalize()
	}
	return out, nil
}

// AssessmentView is the public projection of a record returned to callers.
type AssessmentView struct {
	Name          string   `json:"name"`
	URL           string   `json:"url"`
	Description   string   `json:"description"`
	RemoteTesting YesNo    `json:"remote_testing"`
	Adaptive      YesNo    `json:"adaptive"`
	Duration      string   `json:"duration"`
	TestTypes     []string `json:"test_types"`
	Type          string   `json:"type"`
}

func (r CatalogRecord) View() AssessmentView {
	testTypes := r.TestTypes
	if testTypes == nil {
		testTypes = []string{}
	}
	return AssessmentView{
		Name:          r.Name,
		URL:           r.URL,
		Description:   r.Description,
		RemoteTesting: r.RemoteTesting,
		Adaptive:      r.Adaptive,
		Duration:      r.Duration,
		TestTypes:     testTypes,
		Type:          r.PrimaryType,
	}
}
