package domain

// ScoredRow is a catalog row index with a stage-specific score.
type ScoredRow struct {
	Row   int     `json:"row"`
	Score float64 `json:"score"`
}

// Rows drops scores and keeps order.
func Rows(scored []ScoredRow) []int {
	out := make([]int, len(scored))
	for i, s := range scored {
		out[i] = s.Row
	}
	return out
}

type FetchFailure string

const (
	FetchOK         FetchFailure = ""
	FetchTimeout    FetchFailure = "timeout"
	FetchHTTPStatus FetchFailure = "http_status"
	FetchTransport  FetchFailure = "transport"
	FetchParse      FetchFailure = "parse"
	FetchEmpty      FetchFailure = "empty"
)

// FetchResult is the outcome of extracting text from a page. Text is only
// meaningful when Failure is FetchOK.
type FetchResult struct {
	Text       string
	Failure    FetchFailure
	StatusCode int
	Err        error
}

func (r FetchResult) OK() bool {
	return r.Failure == FetchOK && r.Text != ""
}
