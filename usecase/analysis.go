package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/rawatin/domain/entities"
	"github.com/satriahrh/rawatin/domain/repositories"
)

var (
	// ErrAnalyzerNotConfigured is returned when the vision capability has no
	// usable configuration; no downstream call is attempted.
	ErrAnalyzerNotConfigured = errors.New("vision analyzer is not configured")
	// ErrAnalysisRequest wraps any downstream transport or parsing failure
	ErrAnalysisRequest = errors.New("vision analysis request failed")
)

// AnalysisDispatcher wraps calls to the VisionAnalyzer capability. It is
// stateless per call and never retries; a failed call surfaces immediately
// and the caller owns any retry decision.
type AnalysisDispatcher struct {
	analyzer repositories.VisionAnalyzer
	logger   *zap.Logger
}

// NewAnalysisDispatcher creates a new analysis dispatcher
func NewAnalysisDispatcher(analyzer repositories.VisionAnalyzer, logger *zap.Logger) *AnalysisDispatcher {
	return &AnalysisDispatcher{analyzer: analyzer, logger: logger}
}

// AnalyzeImage runs visual analysis on raw image bytes
func (d *AnalysisDispatcher) AnalyzeImage(ctx context.Context, image []byte, userID string) (*entities.AnalysisResult, error) {
	if d.analyzer == nil || !d.analyzer.Configured() {
		return nil, ErrAnalyzerNotConfigured
	}

	analysisCtx := entities.AnalysisContext{
		RequestID: uuid.NewString(),
		UserID:    userID,
	}

	d.logger.Info("Dispatching image analysis",
		zap.String("requestID", analysisCtx.RequestID),
		zap.Int("imageSize", len(image)))

	result, err := d.analyzer.Analyze(ctx, image, analysisCtx)
	if err != nil {
		d.logger.Error("Image analysis failed",
			zap.String("requestID", analysisCtx.RequestID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrAnalysisRequest, err)
	}

	return result, nil
}
