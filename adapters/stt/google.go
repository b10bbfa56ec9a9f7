package stt

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/rawatin/domain/entities"
	"github.com/satriahrh/rawatin/domain/repositories"
)

// GoogleTranscriber implements Transcriber using Google Cloud Speech-to-Text
// streaming recognition
type GoogleTranscriber struct {
	logger *zap.Logger
}

// NewGoogleTranscriber creates a Google Cloud backed transcriber
func NewGoogleTranscriber(logger *zap.Logger) *GoogleTranscriber {
	return &GoogleTranscriber{logger: logger}
}

// Available reports whether Google Cloud credentials are configured
func (g *GoogleTranscriber) Available() bool {
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
}

// BeginStream opens a streaming recognize request and starts the receiver
func (g *GoogleTranscriber) BeginStream(ctx context.Context, config repositories.AudioConfig) (repositories.TranscriptionStream, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		cancel()
		client.Close()
		return nil, err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
				},
				InterimResults:  config.InterimResults,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		cancel()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	s := &googleTranscriptionStream{
		client: client,
		stream: stream,
		cancel: cancel,
		events: make(chan entities.TranscriptEvent, 16),
		logger: g.logger,
	}
	go s.receive()

	return s, nil
}

type googleTranscriptionStream struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	events chan entities.TranscriptEvent
	logger *zap.Logger

	// sendMu serializes Send/CloseSend; the gRPC stream forbids concurrent
	// writes.
	sendMu    sync.Mutex
	sendEnded bool

	cancelOnce sync.Once
}

func (s *googleTranscriptionStream) Feed(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendEnded {
		return nil
	}

	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: frame,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

func (s *googleTranscriptionStream) EndAudio() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendEnded {
		return nil
	}
	s.sendEnded = true

	if err := s.stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (s *googleTranscriptionStream) Cancel() {
	s.cancelOnce.Do(func() {
		s.cancel()
	})
}

func (s *googleTranscriptionStream) Events() <-chan entities.TranscriptEvent {
	return s.events
}

// receive owns the events channel: it maps interim results to partial events
// and stops at the first terminal result or error.
func (s *googleTranscriptionStream) receive() {
	defer close(s.events)
	defer s.client.Close()

	var lastInterim string

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			// Stream drained without an is_final result. Promote the last
			// interim text so the capture still finalizes.
			if lastInterim != "" {
				s.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindFinal, Text: lastInterim}
			} else {
				s.events <- entities.TranscriptEvent{
					Kind: entities.TranscriptKindError,
					Err:  fmt.Errorf("no speech detected in audio"),
				}
			}
			return
		}
		if err != nil {
			if s.stream.Context().Err() != nil {
				// Cancelled locally; the consumer is gone.
				return
			}
			s.events <- entities.TranscriptEvent{
				Kind: entities.TranscriptKindError,
				Err:  fmt.Errorf("failed to receive response: %w", err),
			}
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			text := result.Alternatives[0].Transcript
			if result.IsFinal {
				s.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindFinal, Text: text}
				s.Cancel()
				return
			}
			lastInterim = text
			s.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindPartial, Text: text}
		}
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
