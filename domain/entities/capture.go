package entities

// CapturePhase represents the lifecycle phase of a voice capture attempt
type CapturePhase string

const (
	CapturePhaseIdle        CapturePhase = "idle"
	CapturePhaseAuthorizing CapturePhase = "authorizing"
	CapturePhaseCapturing   CapturePhase = "capturing"
	CapturePhaseFinalizing  CapturePhase = "finalizing"
	CapturePhaseCompleted   CapturePhase = "completed"
	CapturePhaseFailed      CapturePhase = "failed"
)

// Terminal reports whether the phase ends a capture attempt
func (p CapturePhase) Terminal() bool {
	return p == CapturePhaseCompleted || p == CapturePhaseFailed
}

// CaptureSnapshot is the read-only state surface published to observers
type CaptureSnapshot struct {
	Phase                  CapturePhase `json:"phase"`
	IsCapturing            bool         `json:"is_capturing"`
	LiveTranscript         string       `json:"live_transcript"`
	LastClassificationText string       `json:"last_classification_text"`
	LastConfidence         float64      `json:"last_confidence"`
}

// TranscriptKind distinguishes intermediate from terminal transcription results
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
	TranscriptKindError   TranscriptKind = "error"
)

// TranscriptEvent is one asynchronous result emitted by a transcription stream.
// Within one stream, partials arrive in emission order and a final or error
// event is always last.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
	Err  error          `json:"-"`
}
