package domain

// EvalCase is one labelled query from an evaluation set.
type EvalCase struct {
	Query        string   `json:"query"`
	RelevantURLs []string `json:"relevant_urls"`
}

type EvalCaseResult struct {
	Query            string   `json:"query"`
	RetrievedURLs    []string `json:"retrieved_urls"`
	Recall           float64  `json:"recall"`
	AveragePrecision float64  `json:"average_precision"`
}

type EvalReport struct {
	K          int              `json:"k"`
	Queries    int              `json:"queries"`
	MeanRecall float64          `json:"mean_recall"`
	MAP        float64          `json:"map"`
	Cases      []EvalCaseResult `json:"cases"`
}
