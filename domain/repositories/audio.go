package repositories

import "context"

// AudioStream delivers raw audio frames from a capture device. Frames are
// opaque fixed-format buffers; no transcoding happens on this side.
type AudioStream interface {
	Frames() <-chan []byte
	Close() error
}

// AudioSource opens live audio capture streams
type AudioSource interface {
	Open(ctx context.Context, config AudioConfig) (AudioStream, error)
}

// CaptureAuthorizer asks the capability layer for microphone/speech
// permission on behalf of a capture attempt
type CaptureAuthorizer interface {
	RequestCaptureAuthorization(ctx context.Context) (bool, error)
}
