package stt

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/rawatin/domain/entities"
	"github.com/satriahrh/rawatin/domain/repositories"
)

var errNoAudio = errors.New("no audio data received")

// MockTranscriber is a placeholder transcriber for development without
// Google Cloud credentials
type MockTranscriber struct {
	logger *zap.Logger
}

// NewMockTranscriber creates a new mock transcriber
func NewMockTranscriber(logger *zap.Logger) *MockTranscriber {
	return &MockTranscriber{logger: logger}
}

// Available always reports ready
func (m *MockTranscriber) Available() bool { return true }

// BeginStream creates a scripted recognition stream
func (m *MockTranscriber) BeginStream(_ context.Context, config repositories.AudioConfig) (repositories.TranscriptionStream, error) {
	m.logger.Info("Beginning mock transcription stream",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.Bool("interimResults", config.InterimResults))

	return &mockTranscriptionStream{
		interim: config.InterimResults,
		events:  make(chan entities.TranscriptEvent, 16),
	}, nil
}

type mockTranscriptionStream struct {
	interim bool
	events  chan entities.TranscriptEvent

	mu        sync.Mutex
	received  int
	lastText  string
	closeOnce sync.Once
}

// Feed emits mock partial results keyed off the cumulative audio volume
func (s *mockTranscriptionStream) Feed(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received += len(frame)
	var text string
	switch {
	case s.received > 10000:
		text = "the water leak under the kitchen sink is getting worse"
	case s.received > 5000:
		text = "the water leak under the kitchen sink"
	case s.received > 1000:
		text = "the water leak"
	default:
		text = "the"
	}

	if text != s.lastText {
		s.lastText = text
		if s.interim {
			s.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindPartial, Text: text}
		}
	}
	return nil
}

// EndAudio finalizes with the last mock partial
func (s *mockTranscriptionStream) EndAudio() error {
	s.mu.Lock()
	text := s.lastText
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		if text == "" {
			s.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindError, Err: errNoAudio}
		} else {
			s.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindFinal, Text: text}
		}
		close(s.events)
	})
	return nil
}

// Cancel abandons the stream without a final result
func (s *mockTranscriptionStream) Cancel() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
}

func (s *mockTranscriptionStream) Events() <-chan entities.TranscriptEvent {
	return s.events
}
