package usecase

import (
	"strings"

	"github.com/satriahrh/rawatin/domain/entities"
)

// SummaryBuilder assembles a finished issue summary out of a transcript,
// optional voice notes, and an optional visual analysis result. It has no
// side effects; every call produces a fresh IssueSummary.
type SummaryBuilder struct {
	classifier *Classifier
}

// SummaryInput carries everything a summary is built from. Analysis is nil
// when no photo was analyzed. CaptureConfidence is the classification
// confidence of the most recent finalized capture, zero if none occurred.
type SummaryInput struct {
	Title             string
	Transcript        string
	VoiceNotes        string
	Analysis          *entities.AnalysisResult
	CaptureConfidence float64
}

// NewSummaryBuilder creates a summary builder backed by the given classifier
func NewSummaryBuilder(classifier *Classifier) *SummaryBuilder {
	return &SummaryBuilder{classifier: classifier}
}

// Build produces the formatted summary text and the derived
// priority/estimate/confidence triple. When an analysis result is present its
// priority, estimated time and confidence take precedence; otherwise priority
// falls back to the classifier, estimated time to "Unknown", and confidence
// to the last capture's classification confidence.
func (b *SummaryBuilder) Build(input SummaryInput) entities.IssueSummary {
	var lines []string

	lines = append(lines, "Issue: "+input.Title)
	if input.Transcript != "" {
		lines = append(lines, "Description: "+input.Transcript)
	}
	if input.VoiceNotes != "" {
		lines = append(lines, "Voice Notes: "+input.VoiceNotes)
	}

	priority := b.classifier.Priority(input.Transcript)
	estimatedTime := "Unknown"
	confidence := input.CaptureConfidence

	if input.Analysis != nil {
		lines = append(lines, "Visual Analysis: "+input.Analysis.Description)
		if len(input.Analysis.Recommendations) > 0 {
			lines = append(lines, "Recommendations:")
			for _, recommendation := range input.Analysis.Recommendations {
				lines = append(lines, "- "+recommendation)
			}
		}
		lines = append(lines, "Estimated Time: "+input.Analysis.EstimatedTime)
		lines = append(lines, "Priority: "+input.Analysis.Priority)

		priority = input.Analysis.Priority
		estimatedTime = input.Analysis.EstimatedTime
		confidence = input.Analysis.Confidence
	}

	return entities.IssueSummary{
		Text:              strings.Join(lines, "\n"),
		SuggestedPriority: priority,
		EstimatedTime:     estimatedTime,
		Confidence:        confidence,
	}
}
