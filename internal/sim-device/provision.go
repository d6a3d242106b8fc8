package sim_device

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/KongGithubDev/MushIoT/internal/api"
)

// KeyStore persists device credentials across restarts.
type KeyStore interface {
	Get(deviceID string) (string, error)
	Put(deviceID, apiKey string) error
}

// ProvisionError wraps any failure on the enrollment path so callers
// can tell it apart from ordinary tick errors.
type ProvisionError struct {
	DeviceID string
	Err      error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision %s: %v", e.DeviceID, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// EnsureAPIKey returns the device's API key, enrolling against the
// backend only when the store has no key yet. The key is persisted
// before it is returned.
func EnsureAPIKey(ctx context.Context, client *api.Client, store KeyStore, deviceID, enrollSecret string) (string, error) {
	key, err := store.Get(deviceID)
	if err != nil {
		return "", &ProvisionError{DeviceID: deviceID, Err: err}
	}
	if key != "" {
		return key, nil
	}

	log.Printf("provision: POST %s/api/devices/%s/rotate-key", client.Base(), deviceID)
	key, err = client.RotateKey(ctx, deviceID, enrollSecret)
	if err != nil {
		return "", &ProvisionError{DeviceID: deviceID, Err: err}
	}
	if err := store.Put(deviceID, key); err != nil {
		return "", &ProvisionError{DeviceID: deviceID, Err: err}
	}
	log.Printf("provision: apiKey saved for %s", deviceID)
	return key, nil
}

// AutoDeviceID generates an esp32-style id with a random 24-bit suffix.
func AutoDeviceID() string {
	return fmt.Sprintf("esp32-%06x", rand.Intn(1<<24))
}
