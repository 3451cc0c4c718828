package ble

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned when an operation needs a live link.
	ErrNotConnected = errors.New("ble: not connected")
	// ErrServiceNotFound is returned when no peripheral exposes the service.
	ErrServiceNotFound = errors.New("ble: service not found")
	// ErrUnknownCharacteristic is returned for a characteristic the
	// transport did not discover on the current connection.
	ErrUnknownCharacteristic = errors.New("ble: unknown characteristic")
)

// Characteristic is one data channel discovered on the peripheral. The
// transport owns it; callers only read UUID and Notify.
type Characteristic struct {
	// UUID is the canonical lowercase dashed form.
	UUID string
	// Notify reports support for push-style notification delivery.
	Notify bool

	handle any
}

// NewCharacteristic builds a Characteristic carrying a transport specific
// handle. Transports outside this package pass nil and key on UUID.
func NewCharacteristic(uuid string, notify bool, handle any) Characteristic {
	return Characteristic{UUID: CanonicalUUID(uuid), Notify: notify, handle: handle}
}

// Handle returns the transport specific handle.
func (c Characteristic) Handle() any {
	return c.handle
}

// Transport abstracts the BLE central stack so the core can be driven by
// real hardware or by a substitute in tests.
type Transport interface {
	// Connect finds a peripheral advertising serviceUUID, connects to it
	// and returns the characteristics of that service.
	Connect(ctx context.Context, serviceUUID string) ([]Characteristic, error)
	// StartNotifications subscribes fn to notifications on c. fn may be
	// called from any goroutine until Disconnect.
	StartNotifications(c Characteristic, fn func(buf []byte)) error
	// OnDisconnect registers a callback invoked when the link drops.
	OnDisconnect(fn func())
	// Disconnect disables every notification started on this connection and
	// drops the link. It is safe to call when not connected.
	Disconnect() error
}
