package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/satriahrh/rawatin/domain/entities"
)

// ErrDeviceNotFound is returned when no device matches the lookup
var ErrDeviceNotFound = errors.New("device not found")

// ErrInvalidCredentials is returned when the secret key does not match
var ErrInvalidCredentials = errors.New("invalid device credentials")

// MemoryRepository is an in-memory device registry. It seeds a few terminals
// so the server works out of the box during development.
type MemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device
}

// NewMemoryRepository creates a registry with pre-registered test terminals
func NewMemoryRepository() *MemoryRepository {
	repo := &MemoryRepository{
		devices: make(map[string]*entities.Device),
	}

	repo.seed("RWT-0001", "secret123", "terminal-v1", "Lobby")
	repo.seed("RWT-0002", "secret456", "terminal-v1", "Basement")
	repo.seed("RWT-0003", "secret789", "terminal-v2", "Roof access")

	return repo
}

func (m *MemoryRepository) seed(serialNumber, secretKey, model, location string) {
	now := time.Now()
	device := &entities.Device{
		ID:           "device-" + serialNumber,
		SerialNumber: serialNumber,
		SecretKey:    secretKey,
		Model:        model,
		Location:     location,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.devices[device.ID] = device
}

func (m *MemoryRepository) Create(ctx context.Context, device *entities.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.ID] = device
	return nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	device, ok := m.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

func (m *MemoryRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, device := range m.devices {
		if device.SerialNumber == serialNumber {
			return device, nil
		}
	}
	return nil, ErrDeviceNotFound
}

// Validate checks the serial number and secret key pair
func (m *MemoryRepository) Validate(ctx context.Context, serialNumber, secretKey string) (*entities.Device, error) {
	device, err := m.GetBySerialNumber(ctx, serialNumber)
	if err != nil {
		return nil, err
	}
	if device.SecretKey != secretKey {
		return nil, ErrInvalidCredentials
	}
	return device, nil
}
