package repositories

import (
	"context"

	"github.com/satriahrh/rawatin/domain/entities"
)

// VisionAnalyzer abstracts image-based visual analysis of a reported issue
type VisionAnalyzer interface {
	// Configured reports whether the analyzer has the credentials it needs
	Configured() bool
	// Analyze inspects an image and returns a structured analysis result
	Analyze(ctx context.Context, image []byte, analysisCtx entities.AnalysisContext) (*entities.AnalysisResult, error)
}
