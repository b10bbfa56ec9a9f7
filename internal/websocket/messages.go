package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// device -> server
	MessageTypeCaptureStart  MessageType = "capture_start"
	MessageTypeCaptureStop   MessageType = "capture_stop"
	MessageTypeAuthorization MessageType = "authorization_result"
	MessageTypePing          MessageType = "ping"

	// server -> device/observer
	MessageTypeAuthorizationRequest MessageType = "authorization_request"
	MessageTypeCaptureState         MessageType = "capture_state"
	MessageTypeLiveTranscript       MessageType = "live_transcript"
	MessageTypeClassification       MessageType = "classification"
	MessageTypeCaptureError         MessageType = "capture_error"
	MessageTypePong                 MessageType = "pong"
	MessageTypeError                MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// CaptureStartMessage asks the server to begin a voice capture
type CaptureStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language,omitempty"`
}

// CaptureStopMessage asks the server to end the current capture
type CaptureStopMessage struct {
	BaseMessage
}

// AuthorizationResultMessage carries the device's answer to a pending
// microphone permission request
type AuthorizationResultMessage struct {
	BaseMessage
	RequestID string `json:"request_id"`
	Granted   bool   `json:"granted"`
}

// AuthorizationRequestMessage asks the device to grant microphone permission
type AuthorizationRequestMessage struct {
	BaseMessage
	RequestID string `json:"request_id"`
}

// CaptureStateMessage publishes a capture phase change
type CaptureStateMessage struct {
	BaseMessage
	Phase       string `json:"phase"`
	IsCapturing bool   `json:"is_capturing"`
}

// LiveTranscriptMessage publishes the latest transcript value
type LiveTranscriptMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ClassificationMessage publishes the finalized classification
type ClassificationMessage struct {
	BaseMessage
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// CaptureErrorMessage publishes a capture failure
type CaptureErrorMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// ErrorMessage represents a protocol-level error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// MessageValidator provides validation for incoming WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message and returns the typed form
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	if base.Timestamp == "" {
		base.Timestamp = time.Now().Format(time.RFC3339)
	}

	switch base.Type {
	case MessageTypeCaptureStart:
		var msg CaptureStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid capture start message: %w", err)
		}
		if err := v.validateCaptureStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeCaptureStop:
		var msg CaptureStopMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid capture stop message: %w", err)
		}
		return &msg, nil

	case MessageTypeAuthorization:
		var msg AuthorizationResultMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid authorization result message: %w", err)
		}
		if msg.RequestID == "" {
			return nil, fmt.Errorf("request_id is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg BaseMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateCaptureStart validates capture start message fields
func (v *MessageValidator) validateCaptureStart(msg *CaptureStartMessage) error {
	if msg.SampleRate < 8000 || msg.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}

	validEncodings := map[string]bool{
		"LINEAR16": true, "WAV": true, "FLAC": true, "OGG_OPUS": true, "WEBM_OPUS": true,
	}
	if !validEncodings[msg.Encoding] {
		return fmt.Errorf("encoding must be one of: LINEAR16, WAV, FLAC, OGG_OPUS, WEBM_OPUS")
	}

	return nil
}
