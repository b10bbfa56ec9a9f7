package usecase

import (
	"strings"

	"github.com/satriahrh/rawatin/domain/entities"
)

// classificationRule maps a keyword set to a fixed description/confidence pair
type classificationRule struct {
	keywords    []string
	description string
	confidence  float64
}

// priorityRule maps a keyword set to a priority category
type priorityRule struct {
	keywords []string
	priority string
}

// Classifier turns free-form issue text into a canned description with a
// fixed confidence, and derives a priority label. Rules are evaluated in
// order and the first match wins; overlapping keywords never combine.
type Classifier struct {
	classificationRules []classificationRule
	priorityRules       []priorityRule
}

const (
	defaultDescription = "general maintenance issue"
	defaultConfidence  = 0.65
	defaultPriority    = "Normal"
)

// NewClassifier creates a classifier with the built-in maintenance rule set
func NewClassifier() *Classifier {
	return &Classifier{
		classificationRules: []classificationRule{
			{keywords: []string{"door", "hinge"}, description: "door mechanism issue", confidence: 0.87},
			{keywords: []string{"wall", "paint"}, description: "wall surface issue", confidence: 0.74},
			{keywords: []string{"electrical", "outlet", "light"}, description: "electrical system issue", confidence: 0.91},
			{keywords: []string{"water", "leak", "plumbing"}, description: "plumbing or water issue", confidence: 0.83},
		},
		priorityRules: []priorityRule{
			{keywords: []string{"urgent", "emergency", "electrical", "water", "leak"}, priority: "Urgent"},
			{keywords: []string{"door", "safety", "broken"}, priority: "High"},
			{keywords: []string{"paint", "cosmetic"}, priority: "Low"},
		},
	}
}

// Classify returns the first matching rule's description and confidence.
// It is total: text matching no rule yields the default result.
func (c *Classifier) Classify(text string) entities.ClassificationResult {
	lowered := strings.ToLower(text)
	for _, rule := range c.classificationRules {
		if containsAny(lowered, rule.keywords) {
			return entities.ClassificationResult{
				Description: rule.description,
				Confidence:  rule.confidence,
			}
		}
	}
	return entities.ClassificationResult{
		Description: defaultDescription,
		Confidence:  defaultConfidence,
	}
}

// Priority returns the first matching priority category, or "Normal"
func (c *Classifier) Priority(text string) string {
	lowered := strings.ToLower(text)
	for _, rule := range c.priorityRules {
		if containsAny(lowered, rule.keywords) {
			return rule.priority
		}
	}
	return defaultPriority
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
