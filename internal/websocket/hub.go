package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/rawatin/domain/entities"
	"github.com/satriahrh/rawatin/domain/repositories"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Time allowed for the device to answer a microphone permission request.
	authorizationWait = 30 * time.Second
)

// Client roles. Devices stream audio and answer permission requests;
// observers only receive capture events.
const (
	RoleDevice   = "device"
	RoleObserver = "observer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// CaptureController is the slice of the capture session the hub drives.
type CaptureController interface {
	RequestAuthorization(ctx context.Context) bool
	Start(ctx context.Context, config repositories.AudioConfig) error
	Stop()
	Snapshot() entities.CaptureSnapshot
}

// AudioIngress receives binary audio frames from device clients.
type AudioIngress interface {
	Push(frame []byte) bool
}

// Hub maintains the set of active clients and fans capture events out to
// them. It is also the capture session's event sink and the authorizer that
// turns permission checks into a device round trip.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Pending microphone permission requests keyed by request ID.
	authMu      sync.Mutex
	pendingAuth map[string]chan bool

	controllerMu sync.RWMutex
	controller   CaptureController

	audio     AudioIngress
	validator *MessageValidator

	// audioDefaults fills in what a capture_start message leaves out.
	audioDefaults repositories.AudioConfig

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(audio AudioIngress, audioDefaults repositories.AudioConfig, logger *zap.Logger) *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		pendingAuth:   make(map[string]chan bool),
		audio:         audio,
		validator:     NewMessageValidator(),
		audioDefaults: audioDefaults,
		logger:        logger,
	}
}

// SetCaptureController attaches the capture session after construction. The
// hub and the session reference each other, so one of the two links has to be
// set late.
func (h *Hub) SetCaptureController(controller CaptureController) {
	h.controllerMu.Lock()
	h.controller = controller
	h.controllerMu.Unlock()
}

func (h *Hub) captureController() CaptureController {
	h.controllerMu.RLock()
	defer h.controllerMu.RUnlock()
	return h.controller
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.clientID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.clientID),
				zap.String("role", client.role))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.clientID]; ok {
				delete(h.clients, client.clientID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.clientID))
		}
	}
}

// CapturePhaseChanged implements usecase.CaptureEventSink.
func (h *Hub) CapturePhaseChanged(phase entities.CapturePhase) {
	h.broadcast(CaptureStateMessage{
		BaseMessage: newBaseMessage(MessageTypeCaptureState),
		Phase:       string(phase),
		IsCapturing: phase == entities.CapturePhaseCapturing,
	})
}

// LiveTranscript implements usecase.CaptureEventSink.
func (h *Hub) LiveTranscript(text string) {
	h.broadcast(LiveTranscriptMessage{
		BaseMessage: newBaseMessage(MessageTypeLiveTranscript),
		Text:        text,
	})
}

// Classification implements usecase.CaptureEventSink.
func (h *Hub) Classification(result entities.ClassificationResult) {
	h.broadcast(ClassificationMessage{
		BaseMessage: newBaseMessage(MessageTypeClassification),
		Description: result.Description,
		Confidence:  result.Confidence,
	})
}

// CaptureError implements usecase.CaptureEventSink.
func (h *Hub) CaptureError(err error) {
	h.broadcast(CaptureErrorMessage{
		BaseMessage: newBaseMessage(MessageTypeCaptureError),
		Message:     err.Error(),
	})
}

// RequestCaptureAuthorization implements repositories.CaptureAuthorizer. It
// sends an authorization_request to connected device clients and blocks until
// a device answers, the context ends, or the request times out.
func (h *Hub) RequestCaptureAuthorization(ctx context.Context) (bool, error) {
	requestID := uuid.New().String()
	answer := make(chan bool, 1)

	h.authMu.Lock()
	h.pendingAuth[requestID] = answer
	h.authMu.Unlock()

	defer func() {
		h.authMu.Lock()
		delete(h.pendingAuth, requestID)
		h.authMu.Unlock()
	}()

	sent := h.sendToRole(RoleDevice, AuthorizationRequestMessage{
		BaseMessage: newBaseMessage(MessageTypeAuthorizationRequest),
		RequestID:   requestID,
	})
	if sent == 0 {
		return false, fmt.Errorf("no device connected to authorize capture")
	}

	select {
	case granted := <-answer:
		return granted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(authorizationWait):
		return false, fmt.Errorf("authorization request %s timed out", requestID)
	}
}

// resolveAuthorization delivers a device's answer to the waiting request.
// Unknown request IDs (already resolved, timed out, or never issued) are
// dropped and reported as false.
func (h *Hub) resolveAuthorization(requestID string, granted bool) bool {
	h.authMu.Lock()
	answer, ok := h.pendingAuth[requestID]
	if ok {
		delete(h.pendingAuth, requestID)
	}
	h.authMu.Unlock()

	if !ok {
		return false
	}
	answer <- granted
	return true
}

// broadcast marshals the message and queues it on every client. Clients with
// a full send buffer skip the message rather than block the caller; the
// capture session publishes events while holding its lock.
func (h *Hub) broadcast(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		default:
			h.logger.Warn("Dropping message for slow client",
				zap.String("clientID", client.clientID))
		}
	}
}

// sendToRole queues the message on every client with the given role and
// returns how many clients received it.
func (h *Hub) sendToRole(role string, message interface{}) int {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err))
		return 0
	}

	sent := 0
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.role != role {
			continue
		}
		select {
		case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
			sent++
		default:
			h.logger.Warn("Dropping message for slow client",
				zap.String("clientID", client.clientID))
		}
	}
	return sent
}

func newBaseMessage(messageType MessageType) BaseMessage {
	return BaseMessage{
		Type:      messageType,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: uuid.New().String(),
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Client ID for this connection (device ID or user ID)
	clientID string

	// Role decides which messages the client may send and receive
	role string

	// Logger
	logger *zap.Logger
}

// HandleWebSocket handles websocket requests with a pre-authenticated client
func HandleWebSocket(hub *Hub, c echo.Context, clientID string, role string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		clientID: clientID,
		role:     role,
		logger:   logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			// Control messages (capture start/stop, authorization answers)
			c.processMessage(message)
		case websocket.BinaryMessage:
			// Raw audio frames
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage validates and dispatches a control message from the client
func (c *Client) processMessage(message []byte) {
	validated, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected invalid message",
			zap.String("clientID", c.clientID),
			zap.Error(err))
		c.sendError("invalid_message", err.Error())
		return
	}

	switch msg := validated.(type) {
	case *CaptureStartMessage:
		c.handleCaptureStart(msg)
	case *CaptureStopMessage:
		c.handleCaptureStop()
	case *AuthorizationResultMessage:
		c.handleAuthorizationResult(msg)
	case *BaseMessage:
		if msg.Type == MessageTypePing {
			c.sendJSON(BaseMessage{
				Type:      MessageTypePong,
				Timestamp: time.Now().Format(time.RFC3339),
				MessageID: msg.MessageID,
			})
		}
	default:
		c.logger.Warn("Unhandled message", zap.String("clientID", c.clientID))
	}
}

// processBinaryAudioChunk forwards a binary audio frame to the audio source
func (c *Client) processBinaryAudioChunk(data []byte) {
	if c.role != RoleDevice {
		c.logger.Warn("Ignoring audio frame from non-device client",
			zap.String("clientID", c.clientID),
			zap.String("role", c.role))
		return
	}

	if !c.hub.audio.Push(data) {
		c.logger.Debug("Dropped audio frame",
			zap.String("clientID", c.clientID),
			zap.Int("size", len(data)))
	}
}

// handleCaptureStart runs the authorization round trip and starts the capture.
// It runs asynchronously because authorization blocks on a device answer.
func (c *Client) handleCaptureStart(msg *CaptureStartMessage) {
	controller := c.hub.captureController()
	if controller == nil {
		c.sendError("capture_unavailable", "capture session is not configured")
		return
	}

	// The device declares its stream format; the hub defaults cover the rest.
	config := c.hub.audioDefaults
	config.SampleRate = msg.SampleRate
	config.Encoding = msg.Encoding
	if msg.Language != "" {
		config.Language = msg.Language
	}

	c.logger.Info("Capture start requested",
		zap.String("clientID", c.clientID),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), authorizationWait)
		defer cancel()

		if !controller.RequestAuthorization(ctx) {
			c.logger.Warn("Capture authorization not granted",
				zap.String("clientID", c.clientID))
			return
		}

		if err := controller.Start(context.Background(), config); err != nil {
			c.logger.Error("Failed to start capture",
				zap.String("clientID", c.clientID),
				zap.Error(err))
			c.sendError("capture_start_failed", err.Error())
		}
	}()
}

func (c *Client) handleCaptureStop() {
	controller := c.hub.captureController()
	if controller == nil {
		c.sendError("capture_unavailable", "capture session is not configured")
		return
	}
	controller.Stop()
}

func (c *Client) handleAuthorizationResult(msg *AuthorizationResultMessage) {
	if c.role != RoleDevice {
		c.logger.Warn("Ignoring authorization result from non-device client",
			zap.String("clientID", c.clientID),
			zap.String("role", c.role))
		return
	}

	if !c.hub.resolveAuthorization(msg.RequestID, msg.Granted) {
		c.logger.Warn("Authorization result for unknown request",
			zap.String("clientID", c.clientID),
			zap.String("requestID", msg.RequestID))
	}
}

func (c *Client) sendError(code string, message string) {
	c.sendJSON(ErrorMessage{
		BaseMessage: newBaseMessage(MessageTypeError),
		Code:        code,
		Message:     message,
	})
}

func (c *Client) sendJSON(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Dropping message for slow client",
			zap.String("clientID", c.clientID))
	}
}
