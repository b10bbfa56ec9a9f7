package entities

// ClassificationResult pairs a canned issue description with the fixed
// confidence of the rule that produced it
type ClassificationResult struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// AnalysisResult is the structured outcome of image-based visual analysis.
// It is created per analysis call and discarded after the summary consumes it.
type AnalysisResult struct {
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations"`
	EstimatedTime   string   `json:"estimated_time"`
	Priority        string   `json:"priority"`
	Confidence      float64  `json:"confidence"`
}

// AnalysisContext carries optional identifiers along with an analysis request
type AnalysisContext struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id,omitempty"`
}

// IssueSummary is the finished, immutable summary of a reported issue
type IssueSummary struct {
	Text              string  `json:"text"`
	SuggestedPriority string  `json:"suggested_priority"`
	EstimatedTime     string  `json:"estimated_time"`
	Confidence        float64 `json:"confidence"`
}
