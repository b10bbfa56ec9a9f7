package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/rawatin/domain/entities"
	"github.com/satriahrh/rawatin/domain/repositories"
	"github.com/satriahrh/rawatin/internal/auth"
	"github.com/satriahrh/rawatin/internal/websocket"
	"github.com/satriahrh/rawatin/usecase"
)

// Photos attached to analysis requests are capped at this size.
const maxImageBytes = 10 * 1024 * 1024

// CaptureStatus exposes the read side of the capture session to HTTP handlers
type CaptureStatus interface {
	Snapshot() entities.CaptureSnapshot
}

// Dependencies bundles everything the HTTP layer needs
type Dependencies struct {
	Hub        *websocket.Hub
	DeviceRepo repositories.DeviceRepository
	ReportRepo repositories.ReportRepository
	Analysis   *usecase.AnalysisDispatcher
	Summary    *usecase.SummaryBuilder
	Capture    CaptureStatus
	Logger     *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps *Dependencies) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "rawatin-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Authentication
	v1.POST("/device/auth", deps.deviceAuth)
	v1.POST("/users/login", deps.userLogin)

	// Capture state
	v1.GET("/capture", deps.getCaptureSnapshot)

	// Visual analysis
	v1.POST("/analyses", deps.analyzeImage)

	// Issue reports
	v1.POST("/reports", deps.createReport)
	v1.GET("/reports", deps.listReports)
	v1.GET("/reports/:id", deps.getReport)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return deps.websocketWithAuth(c)
	})
}

func (d *Dependencies) deviceAuth(c echo.Context) error {
	var req DeviceAuthRequest

	if err := c.Bind(&req); err != nil {
		d.Logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	device, err := d.DeviceRepo.Validate(c.Request().Context(), req.SerialNumber, req.SecretKey)
	if err != nil {
		d.Logger.Warn("Device authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, err := auth.GenerateDeviceToken(device.ID)
	if err != nil {
		d.Logger.Error("Failed to generate device token",
			zap.String("device_id", device.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	d.Logger.Info("Device authenticated successfully",
		zap.String("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		DeviceID:  device.ID,
	})
}

// userLogin issues a user token for the supplied email. There is no password
// check yet; this mirrors how terminals are seeded for development.
func (d *Dependencies) userLogin(c echo.Context) error {
	var req UserLoginRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Email is required",
		})
	}

	userID := "user-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(req.Email)).String()
	token, err := auth.GenerateUserToken(userID)
	if err != nil {
		d.Logger.Error("Failed to generate user token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, UserLoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		UserID:    userID,
	})
}

func (d *Dependencies) getCaptureSnapshot(c echo.Context) error {
	if _, err := d.authenticate(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d.Capture.Snapshot())
}

func (d *Dependencies) analyzeImage(c echo.Context) error {
	claims, err := d.authenticate(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_image",
			Message: "Multipart field 'image' is required",
		})
	}
	if fileHeader.Size > maxImageBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "image_too_large",
			Message: "Image exceeds the 10MB limit",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		d.Logger.Error("Failed to open uploaded image", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_image",
			Message: "Could not read uploaded image",
		})
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		d.Logger.Error("Failed to read uploaded image", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_image",
			Message: "Could not read uploaded image",
		})
	}

	result, err := d.Analysis.AnalyzeImage(c.Request().Context(), image, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrAnalyzerNotConfigured):
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "analyzer_not_configured",
				Message: "Visual analysis is not configured on this server",
			})
		case errors.Is(err, usecase.ErrAnalysisRequest):
			return c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   "analysis_failed",
				Message: err.Error(),
			})
		default:
			d.Logger.Error("Visual analysis failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Visual analysis failed",
			})
		}
	}

	return c.JSON(http.StatusOK, result)
}

func (d *Dependencies) createReport(c echo.Context) error {
	claims, err := d.authenticate(c)
	if err != nil {
		return err
	}
	if d.ReportRepo == nil {
		return d.reportStorageUnavailable(c)
	}

	var req CreateReportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Title is required",
		})
	}

	snapshot := d.Capture.Snapshot()
	transcript := req.Transcript
	if transcript == "" {
		transcript = snapshot.LiveTranscript
	}

	summary := d.Summary.Build(usecase.SummaryInput{
		Title:             req.Title,
		Transcript:        transcript,
		VoiceNotes:        req.VoiceNotes,
		Analysis:          req.Analysis,
		CaptureConfidence: snapshot.LastConfidence,
	})

	report := entities.NewIssueReport(reporterID(claims), req.Title, summary)
	report.Transcript = transcript
	report.VoiceNotes = req.VoiceNotes

	if err := d.ReportRepo.Create(c.Request().Context(), report); err != nil {
		d.Logger.Error("Failed to create report", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "report_creation_failed",
			Message: "Failed to store the report",
		})
	}

	d.Logger.Info("Report created",
		zap.String("report_id", report.ID),
		zap.String("reporter_id", report.ReporterID),
		zap.String("priority", summary.SuggestedPriority))

	return c.JSON(http.StatusCreated, report)
}

func (d *Dependencies) listReports(c echo.Context) error {
	claims, err := d.authenticate(c)
	if err != nil {
		return err
	}
	if d.ReportRepo == nil {
		return d.reportStorageUnavailable(c)
	}

	reports, err := d.ReportRepo.ListByReporter(c.Request().Context(), reporterID(claims))
	if err != nil {
		d.Logger.Error("Failed to list reports", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list reports",
		})
	}
	if reports == nil {
		reports = []*entities.IssueReport{}
	}
	return c.JSON(http.StatusOK, reports)
}

func (d *Dependencies) getReport(c echo.Context) error {
	claims, err := d.authenticate(c)
	if err != nil {
		return err
	}
	if d.ReportRepo == nil {
		return d.reportStorageUnavailable(c)
	}

	report, err := d.ReportRepo.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		d.Logger.Error("Failed to get report", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load the report",
		})
	}
	if report == nil || report.ReporterID != reporterID(claims) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Report not found",
		})
	}
	return c.JSON(http.StatusOK, report)
}

func (d *Dependencies) reportStorageUnavailable(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error:   "storage_not_configured",
		Message: "Report storage is not configured on this server",
	})
}

// authenticate extracts and validates the bearer token. It writes the error
// response itself and returns a non-nil error to short-circuit the handler.
func (d *Dependencies) authenticate(c echo.Context) (*auth.JWTClaims, error) {
	token := bearerToken(c)
	if token == "" {
		return nil, c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		return nil, c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}
	return claims, nil
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return ""
}

func reporterID(claims *auth.JWTClaims) string {
	if claims.Role == auth.RoleDevice {
		return claims.DeviceID
	}
	return claims.UserID
}

// websocketWithAuth handles WebSocket connections with JWT authentication.
// Device tokens join as audio-streaming devices, user tokens as observers.
func (d *Dependencies) websocketWithAuth(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		// Browsers cannot set headers on websocket upgrades.
		token = c.QueryParam("token")
	}

	if token == "" {
		d.Logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		d.Logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	clientID := reporterID(claims)
	if clientID == "" {
		d.Logger.Error("WebSocket connection rejected: missing subject in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Token carries no device or user ID",
		})
	}

	role := websocket.RoleObserver
	if claims.Role == auth.RoleDevice {
		role = websocket.RoleDevice
	}

	d.Logger.Info("WebSocket connection authenticated",
		zap.String("client_id", clientID),
		zap.String("role", role))

	return websocket.HandleWebSocket(d.Hub, c, clientID, role, d.Logger)
}
