package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/rawatin/domain/entities"
	"github.com/satriahrh/rawatin/domain/repositories"
)

var (
	// ErrTranscriberUnavailable is returned by Start when the transcription
	// capability reports not-ready
	ErrTranscriberUnavailable = errors.New("transcriber is not available")
	// ErrRequestCreation is returned by Start when the recognition stream
	// cannot be constructed
	ErrRequestCreation = errors.New("failed to create recognition stream")
	// ErrAudioEngine is returned by Start when the audio source cannot be
	// opened
	ErrAudioEngine = errors.New("failed to open audio capture")
	// ErrTranscription wraps any error surfaced by the transcriber for the
	// current generation
	ErrTranscription = errors.New("transcription failed")
)

// CaptureEventSink publishes capture state to observers such as the websocket
// hub. Delivery is at-least-once per change with last-value-wins semantics.
// Implementations must not call back into the CaptureSession.
type CaptureEventSink interface {
	CapturePhaseChanged(phase entities.CapturePhase)
	LiveTranscript(text string)
	Classification(result entities.ClassificationResult)
	CaptureError(err error)
}

// CaptureSession owns the live voice-capture lifecycle: it wires audio frames
// into the transcriber, tracks partial and final results, and runs the
// classifier on finalization.
//
// All state lives behind a single mutex and every transition happens under
// it. Each capture attempt gets a new generation number; asynchronous events
// carry the generation of the stream that produced them and anything tagged
// with a stale generation is dropped without touching state. Stop also
// advances the generation, so suspended continuations (such as an in-flight
// authorization request) notice they were superseded.
type CaptureSession struct {
	authorizer  repositories.CaptureAuthorizer
	audio       repositories.AudioSource
	transcriber repositories.Transcriber
	classifier  *Classifier
	events      CaptureEventSink
	logger      *zap.Logger

	// startMu serializes Start attempts end-to-end. Stream and tap setup
	// happen outside the state mutex; without this, two concurrent starts
	// could both observe no active capture and the loser's stream, tap and
	// cancel func would leak unreleased.
	startMu sync.Mutex

	mu             sync.Mutex
	generation     uint64
	phase          entities.CapturePhase
	liveTranscript string
	lastResult     entities.ClassificationResult
	active         *activeCapture
}

// activeCapture holds the resources of one running capture attempt
type activeCapture struct {
	generation uint64
	cancel     context.CancelFunc
	frames     repositories.AudioStream
	stream     repositories.TranscriptionStream
}

// NewCaptureSession creates an idle capture session
func NewCaptureSession(
	authorizer repositories.CaptureAuthorizer,
	audio repositories.AudioSource,
	transcriber repositories.Transcriber,
	classifier *Classifier,
	events CaptureEventSink,
	logger *zap.Logger,
) *CaptureSession {
	return &CaptureSession{
		authorizer:  authorizer,
		audio:       audio,
		transcriber: transcriber,
		classifier:  classifier,
		events:      events,
		logger:      logger,
		phase:       entities.CapturePhaseIdle,
	}
}

// RequestAuthorization asks the capability layer for microphone/speech
// permission. It blocks until the authorizer responds and never returns an
// error: denial, unavailability, and supersession all yield false. A Stop or
// a newer Start while the request is in flight invalidates the continuation.
func (s *CaptureSession) RequestAuthorization(ctx context.Context) bool {
	s.mu.Lock()
	generation := s.generation
	if s.phase == entities.CapturePhaseIdle || s.phase.Terminal() {
		s.setPhaseLocked(entities.CapturePhaseAuthorizing)
	}
	s.mu.Unlock()

	granted, err := s.authorizer.RequestCaptureAuthorization(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		s.logger.Info("Discarding stale authorization response",
			zap.Uint64("generation", generation),
			zap.Uint64("current", s.generation))
		return false
	}
	if err != nil || !granted {
		if err != nil {
			s.logger.Warn("Authorization request failed", zap.Error(err))
		}
		s.setPhaseLocked(entities.CapturePhaseFailed)
		return false
	}
	return true
}

// Start begins a new capture attempt using the given audio configuration.
// Any capture already running is stopped first; the new generation supersedes
// it. On success the transcript is cleared, the phase moves to Capturing, and
// audio frames begin flowing into the recognition stream. Start calls are
// serialized: the later caller waits, then supersedes the earlier capture.
func (s *CaptureSession) Start(ctx context.Context, config repositories.AudioConfig) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if !s.transcriber.Available() {
		return ErrTranscriberUnavailable
	}

	s.mu.Lock()
	previous := s.active
	s.active = nil
	s.mu.Unlock()
	if previous != nil {
		s.release(previous)
	}

	captureCtx, cancel := context.WithCancel(ctx)

	stream, err := s.transcriber.BeginStream(captureCtx, config)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %w", ErrRequestCreation, err)
	}

	frames, err := s.audio.Open(captureCtx, config)
	if err != nil {
		stream.Cancel()
		cancel()
		return fmt.Errorf("%w: %w", ErrAudioEngine, err)
	}

	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.active = &activeCapture{
		generation: generation,
		cancel:     cancel,
		frames:     frames,
		stream:     stream,
	}
	s.setTranscriptLocked("")
	s.setPhaseLocked(entities.CapturePhaseCapturing)
	s.mu.Unlock()

	go s.pumpAudio(generation, frames, stream)
	go s.consumeEvents(generation, stream)

	s.logger.Info("Capture started", zap.Uint64("generation", generation))
	return nil
}

// Stop ends the current capture attempt. It is idempotent: calling it again,
// or from Idle, is a no-op beyond advancing the generation. The audio tap is
// released and end-of-audio signaled before Stop returns; cancellation of the
// recognition task itself may complete asynchronously.
func (s *CaptureSession) Stop() {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.generation++
	if s.phase != entities.CapturePhaseIdle && !s.phase.Terminal() {
		s.setPhaseLocked(entities.CapturePhaseCompleted)
	}
	s.mu.Unlock()

	if active != nil {
		s.release(active)
		s.logger.Info("Capture stopped", zap.Uint64("generation", active.generation))
	}
}

// Snapshot returns the published read-only state surface
func (s *CaptureSession) Snapshot() entities.CaptureSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entities.CaptureSnapshot{
		Phase:                  s.phase,
		IsCapturing:            s.phase == entities.CapturePhaseCapturing,
		LiveTranscript:         s.liveTranscript,
		LastClassificationText: s.lastResult.Description,
		LastConfidence:         s.lastResult.Confidence,
	}
}

// pumpAudio forwards audio frames into the recognition stream until the tap
// closes or feeding fails
func (s *CaptureSession) pumpAudio(generation uint64, frames repositories.AudioStream, stream repositories.TranscriptionStream) {
	for frame := range frames.Frames() {
		if err := stream.Feed(frame); err != nil {
			s.handleError(generation, fmt.Errorf("failed to feed audio frame: %w", err))
			return
		}
	}
	// The tap closed on its own (device stopped sending); tell the
	// transcriber no more audio is coming so it can finalize.
	_ = stream.EndAudio()
}

// consumeEvents serializes transcription events onto the state owner
func (s *CaptureSession) consumeEvents(generation uint64, stream repositories.TranscriptionStream) {
	for event := range stream.Events() {
		switch event.Kind {
		case entities.TranscriptKindPartial:
			s.handlePartial(generation, event.Text)
		case entities.TranscriptKindFinal:
			s.handleFinal(generation, event.Text)
		case entities.TranscriptKindError:
			s.handleError(generation, event.Err)
		}
	}
}

func (s *CaptureSession) handlePartial(generation uint64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation || s.phase != entities.CapturePhaseCapturing {
		return
	}
	s.setTranscriptLocked(text)
}

func (s *CaptureSession) handleFinal(generation uint64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation || s.active == nil || s.active.generation != generation {
		s.logger.Info("Discarding stale final result", zap.Uint64("generation", generation))
		return
	}

	active := s.active
	s.active = nil

	// The final text is the last-partial-wins transcript value; record it
	// while still Capturing.
	s.setTranscriptLocked(text)
	s.setPhaseLocked(entities.CapturePhaseFinalizing)
	s.release(active)

	result := s.classifier.Classify(text)
	s.lastResult = result
	s.events.Classification(result)

	s.setPhaseLocked(entities.CapturePhaseCompleted)
	s.generation++

	s.logger.Info("Capture finalized",
		zap.Uint64("generation", generation),
		zap.String("classification", result.Description),
		zap.Float64("confidence", result.Confidence))
}

func (s *CaptureSession) handleError(generation uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return
	}

	active := s.active
	s.active = nil
	if active != nil {
		s.release(active)
	}

	s.events.CaptureError(fmt.Errorf("%w: %w", ErrTranscription, err))
	s.setPhaseLocked(entities.CapturePhaseFailed)
	s.generation++

	s.logger.Error("Capture failed",
		zap.Uint64("generation", generation),
		zap.Error(err))
}

// release frees the resources of one capture attempt. The underlying
// operations are required to be non-blocking; actual cancellation of the
// recognition task may finish later.
func (s *CaptureSession) release(active *activeCapture) {
	_ = active.frames.Close()
	_ = active.stream.EndAudio()
	active.stream.Cancel()
	active.cancel()
}

func (s *CaptureSession) setPhaseLocked(phase entities.CapturePhase) {
	s.phase = phase
	s.events.CapturePhaseChanged(phase)
}

func (s *CaptureSession) setTranscriptLocked(text string) {
	s.liveTranscript = text
	s.events.LiveTranscript(text)
}
