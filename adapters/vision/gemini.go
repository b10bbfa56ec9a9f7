package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/rawatin/domain/entities"
)

const (
	geminiModel          = "gemini-2.0-flash"
	analysisTimeout      = 30 * time.Second
	analysisInstructions = `You are a building maintenance inspector. Analyze the attached photo of a reported issue and respond with a single JSON object:
{"description": "<what is visibly wrong>", "recommendations": ["<repair step>", ...], "estimated_time": "<e.g. 2-3 hours>", "priority": "<Urgent|High|Normal|Low>", "confidence": <0.0-1.0>}`
)

// GeminiVisionAnalyzer implements VisionAnalyzer using Google's Gemini API
type GeminiVisionAnalyzer struct {
	client *genai.Client
	logger *zap.Logger
}

// NewGeminiVisionAnalyzer creates a Gemini-backed analyzer. Without a
// GEMINI_API_KEY the analyzer is constructed unconfigured and every analysis
// call is rejected before reaching the network.
func NewGeminiVisionAnalyzer(logger *zap.Logger) (*GeminiVisionAnalyzer, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set, vision analysis disabled")
		return &GeminiVisionAnalyzer{logger: logger}, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiVisionAnalyzer{client: client, logger: logger}, nil
}

// Configured reports whether the analyzer holds a usable client
func (g *GeminiVisionAnalyzer) Configured() bool {
	return g.client != nil
}

// Analyze sends the image to Gemini and parses the structured verdict
func (g *GeminiVisionAnalyzer) Analyze(ctx context.Context, image []byte, analysisCtx entities.AnalysisContext) (*entities.AnalysisResult, error) {
	if !g.Configured() {
		return nil, fmt.Errorf("gemini client is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, http.DetectContentType(image)),
			genai.NewPartFromText(analysisInstructions),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.2)),
		ResponseMIMEType: "application/json",
	}

	response, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no analysis generated")
	}

	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	result, err := parseAnalysisResponse(text)
	if err != nil {
		return nil, err
	}

	g.logger.Info("Image analysis completed",
		zap.String("requestID", analysisCtx.RequestID),
		zap.String("priority", result.Priority),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

type analysisResponse struct {
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations"`
	EstimatedTime   string   `json:"estimated_time"`
	Priority        string   `json:"priority"`
	Confidence      float64  `json:"confidence"`
}

// parseAnalysisResponse decodes the model's JSON verdict, tolerating a
// markdown code fence around it
func parseAnalysisResponse(text string) (*entities.AnalysisResult, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var decoded analysisResponse
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	if decoded.Description == "" {
		return nil, fmt.Errorf("analysis response missing description")
	}

	return &entities.AnalysisResult{
		Description:     decoded.Description,
		Recommendations: decoded.Recommendations,
		EstimatedTime:   decoded.EstimatedTime,
		Priority:        decoded.Priority,
		Confidence:      decoded.Confidence,
	}, nil
}
