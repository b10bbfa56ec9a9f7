package repositories

import (
	"context"

	"github.com/satriahrh/rawatin/domain/entities"
)

// DeviceRepository defines data access methods for capture terminals
type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, id string) (*entities.Device, error)
	GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error)

	// Validate checks the serial number and secret key pair and returns the
	// matching device.
	Validate(ctx context.Context, serialNumber, secretKey string) (*entities.Device, error)
}
