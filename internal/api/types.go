package api

import (
	"time"

	"github.com/satriahrh/rawatin/domain/entities"
)

// DeviceAuthRequest represents the request payload for device authentication
type DeviceAuthRequest struct {
	SerialNumber string `json:"serial_number" validate:"required"`
	SecretKey    string `json:"secret_key" validate:"required"`
}

// DeviceAuthResponse represents the response payload for device authentication
type DeviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

// UserLoginRequest represents the request payload for user login
type UserLoginRequest struct {
	Email string `json:"email" validate:"required"`
	Name  string `json:"name,omitempty"`
}

// UserLoginResponse represents the response payload for user login
type UserLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// CreateReportRequest represents the request payload for filing an issue
// report. Transcript falls back to the live capture transcript when omitted.
type CreateReportRequest struct {
	Title      string                   `json:"title" validate:"required"`
	Transcript string                   `json:"transcript,omitempty"`
	VoiceNotes string                   `json:"voice_notes,omitempty"`
	Analysis   *entities.AnalysisResult `json:"analysis,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
