package audio

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/rawatin/domain/repositories"
)

// DeviceAudioSource adapts audio pushed by a remote reporting device into the
// AudioSource port. The websocket edge calls Push for every binary frame it
// receives; whichever stream is currently open gets the frames. Only one
// stream is open at a time: opening a new one closes the previous tap.
type DeviceAudioSource struct {
	logger *zap.Logger

	mu     sync.Mutex
	stream *deviceAudioStream
}

// NewDeviceAudioSource creates an audio source with no open tap
func NewDeviceAudioSource(logger *zap.Logger) *DeviceAudioSource {
	return &DeviceAudioSource{logger: logger}
}

// Open starts a new tap, superseding any previous one
func (s *DeviceAudioSource) Open(_ context.Context, config repositories.AudioConfig) (repositories.AudioStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		s.stream.close()
	}

	s.logger.Info("Opening device audio tap",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	stream := &deviceAudioStream{
		source: s,
		frames: make(chan []byte, 64),
	}
	s.stream = stream
	return stream, nil
}

// Push delivers one frame from the device. It reports false when no capture
// is listening or the buffer is full; the frame is dropped either way, never
// blocking the websocket read loop.
func (s *DeviceAudioSource) Push(frame []byte) bool {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	if stream == nil {
		return false
	}
	return stream.push(frame)
}

func (s *DeviceAudioSource) detach(stream *deviceAudioStream) {
	s.mu.Lock()
	if s.stream == stream {
		s.stream = nil
	}
	s.mu.Unlock()
}

type deviceAudioStream struct {
	source *DeviceAudioSource
	frames chan []byte

	mu     sync.Mutex
	closed bool
}

func (d *deviceAudioStream) Frames() <-chan []byte { return d.frames }

// Close releases the tap; pending frames already in the buffer still drain
func (d *deviceAudioStream) Close() error {
	d.source.detach(d)
	d.close()
	return nil
}

func (d *deviceAudioStream) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.frames)
}

func (d *deviceAudioStream) push(frame []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}

	// The websocket layer reuses its read buffer; keep our own copy.
	buffered := make([]byte, len(frame))
	copy(buffered, frame)

	select {
	case d.frames <- buffered:
		return true
	default:
		return false
	}
}
