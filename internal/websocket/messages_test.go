package websocket

import (
	"strings"
	"testing"
)

func TestValidateCaptureStart(t *testing.T) {
	validator := NewMessageValidator()

	raw := `{"type":"capture_start","sample_rate":16000,"encoding":"LINEAR16","language":"en-US"}`
	validated, err := validator.ValidateMessage([]byte(raw))
	if err != nil {
		t.Fatalf("ValidateMessage: %v", err)
	}

	msg, ok := validated.(*CaptureStartMessage)
	if !ok {
		t.Fatalf("validated type = %T, want *CaptureStartMessage", validated)
	}
	if msg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", msg.SampleRate)
	}
	if msg.Encoding != "LINEAR16" {
		t.Errorf("Encoding = %q, want LINEAR16", msg.Encoding)
	}
	if msg.Language != "en-US" {
		t.Errorf("Language = %q, want en-US", msg.Language)
	}
}

func TestValidateCaptureStartRejectsBadFields(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name:    "sample rate too low",
			raw:     `{"type":"capture_start","sample_rate":4000,"encoding":"LINEAR16"}`,
			wantErr: "sample_rate",
		},
		{
			name:    "sample rate too high",
			raw:     `{"type":"capture_start","sample_rate":96000,"encoding":"LINEAR16"}`,
			wantErr: "sample_rate",
		},
		{
			name:    "unknown encoding",
			raw:     `{"type":"capture_start","sample_rate":16000,"encoding":"MP3"}`,
			wantErr: "encoding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.raw))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAuthorizationResult(t *testing.T) {
	validator := NewMessageValidator()

	raw := `{"type":"authorization_result","request_id":"req-1","granted":true}`
	validated, err := validator.ValidateMessage([]byte(raw))
	if err != nil {
		t.Fatalf("ValidateMessage: %v", err)
	}

	msg, ok := validated.(*AuthorizationResultMessage)
	if !ok {
		t.Fatalf("validated type = %T, want *AuthorizationResultMessage", validated)
	}
	if msg.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", msg.RequestID)
	}
	if !msg.Granted {
		t.Error("Granted = false, want true")
	}
}

func TestValidateAuthorizationResultRequiresRequestID(t *testing.T) {
	validator := NewMessageValidator()

	_, err := validator.ValidateMessage([]byte(`{"type":"authorization_result","granted":true}`))
	if err == nil {
		t.Fatal("expected error for missing request_id")
	}
}

func TestValidateCaptureStop(t *testing.T) {
	validator := NewMessageValidator()

	validated, err := validator.ValidateMessage([]byte(`{"type":"capture_stop"}`))
	if err != nil {
		t.Fatalf("ValidateMessage: %v", err)
	}
	if _, ok := validated.(*CaptureStopMessage); !ok {
		t.Fatalf("validated type = %T, want *CaptureStopMessage", validated)
	}
}

func TestValidateMessageRejectsUnknownType(t *testing.T) {
	validator := NewMessageValidator()

	_, err := validator.ValidateMessage([]byte(`{"type":"teleport"}`))
	if err == nil {
		t.Fatal("expected error for unsupported message type")
	}
}

func TestValidateMessageRejectsInvalidJSON(t *testing.T) {
	validator := NewMessageValidator()

	_, err := validator.ValidateMessage([]byte(`{"type":`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
