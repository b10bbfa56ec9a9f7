package repositories

import (
	"context"

	"github.com/satriahrh/rawatin/domain/entities"
)

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate     int    `json:"sample_rate"`
	Encoding       string `json:"encoding"`
	Language       string `json:"language"`
	InterimResults bool   `json:"interim_results"`
}

// Transcriber abstracts a streaming speech recognition service
type Transcriber interface {
	// Available reports whether the service is ready to accept streams
	Available() bool
	// BeginStream opens a recognition stream for one capture attempt
	BeginStream(ctx context.Context, config AudioConfig) (TranscriptionStream, error)
}

// TranscriptionStream is one live recognition request. Feed pushes raw audio,
// EndAudio signals that no more audio will arrive, Cancel abandons the stream.
// Events delivers partial results in emission order followed by exactly one
// final or error event, then the channel is closed.
type TranscriptionStream interface {
	Feed(frame []byte) error
	EndAudio() error
	Cancel()
	Events() <-chan entities.TranscriptEvent
}
