package vision

import (
	"context"

	"go.uber.org/zap"

	"github.com/satriahrh/rawatin/domain/entities"
	"github.com/satriahrh/rawatin/domain/repositories"
)

// MockVisionAnalyzer is a placeholder analyzer for development without a
// Gemini API key
type MockVisionAnalyzer struct {
	logger *zap.Logger
}

// NewMockVisionAnalyzer creates a new mock analyzer
func NewMockVisionAnalyzer(logger *zap.Logger) *MockVisionAnalyzer {
	return &MockVisionAnalyzer{logger: logger}
}

// Configured always reports ready
func (m *MockVisionAnalyzer) Configured() bool { return true }

// Analyze returns a canned verdict sized to the image payload
func (m *MockVisionAnalyzer) Analyze(_ context.Context, image []byte, analysisCtx entities.AnalysisContext) (*entities.AnalysisResult, error) {
	m.logger.Info("Returning mock image analysis",
		zap.String("requestID", analysisCtx.RequestID),
		zap.Int("imageSize", len(image)))

	return &entities.AnalysisResult{
		Description:     "visible water staining along the ceiling joint",
		Recommendations: []string{"Locate the leak source above the stain", "Replace the affected drywall section"},
		EstimatedTime:   "3-4 hours",
		Priority:        "Urgent",
		Confidence:      0.88,
	}, nil
}

var _ repositories.VisionAnalyzer = &MockVisionAnalyzer{}
