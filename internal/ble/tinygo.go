package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// TinygoTransport talks to the peripheral through tinygo.org/x/bluetooth.
//
// tinygo does not expose GATT property flags on every platform, so every
// characteristic of the service is reported as notify capable and
// StartNotifications surfaces the stack's error for those that are not.
type TinygoTransport struct {
	adapter     *bluetooth.Adapter
	scanTimeout time.Duration
	log         logrus.FieldLogger

	enableOnce sync.Once
	enableErr  error

	mu           sync.Mutex
	device       *bluetooth.Device
	subscribed   []bluetooth.DeviceCharacteristic
	onDisconnect func()
}

// NewTinygoTransport returns a transport on the default adapter.
func NewTinygoTransport(scanTimeout time.Duration, log logrus.FieldLogger) *TinygoTransport {
	return &TinygoTransport{
		adapter:     bluetooth.DefaultAdapter,
		scanTimeout: scanTimeout,
		log:         log,
	}
}

func (t *TinygoTransport) enable() error {
	t.enableOnce.Do(func() {
		if err := t.adapter.Enable(); err != nil {
			t.enableErr = fmt.Errorf("ble: enable adapter: %w", err)
			return
		}
		t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
			if connected {
				return
			}
			t.mu.Lock()
			ours := t.device != nil && t.device.Address.String() == device.Address.String()
			cb := t.onDisconnect
			if ours {
				t.device = nil
				t.subscribed = nil
			}
			t.mu.Unlock()
			if ours && cb != nil {
				t.log.WithField("address", device.Address.String()).Warn("peripheral disconnected")
				cb()
			}
		})
	})
	return t.enableErr
}

// Connect scans for the service, connects to the first peripheral
// advertising it and discovers the service's characteristics.
func (t *TinygoTransport) Connect(ctx context.Context, serviceUUID string) ([]Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: parse service UUID: %w", err)
	}

	if err := t.enable(); err != nil {
		return nil, err
	}

	t.log.WithField("service", serviceUUID).Info("scanning")
	result, err := t.scan(ctx, svcUUID)
	if err != nil {
		return nil, err
	}

	address := result.Address.String()
	t.log.WithFields(logrus.Fields{"address": address, "name": result.LocalName()}).Info("connecting")

	device, err := t.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("ble: connect to %s: %w", address, err)
	}

	svcs, err := device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		device.Disconnect()
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		device.Disconnect()
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics(nil)
	if err != nil {
		device.Disconnect()
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}

	out := make([]Characteristic, 0, len(chars))
	for i := range chars {
		c := NewCharacteristic(chars[i].UUID().String(), true, chars[i])
		t.log.WithField("uuid", c.UUID).Debug("found characteristic")
		out = append(out, c)
	}

	t.mu.Lock()
	t.device = &device
	t.subscribed = nil
	t.mu.Unlock()

	t.log.WithField("address", address).Info("connected")
	return out, nil
}

// scan blocks until a peripheral advertising svc is seen, ctx is done or
// the scan timeout elapses.
func (t *TinygoTransport) scan(ctx context.Context, svc bluetooth.UUID) (bluetooth.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.scanTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("ble: scan: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.adapter.StopScan()
		case <-done:
		}
	}()

	var mu sync.Mutex
	var found *bluetooth.ScanResult

	err := t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !result.HasServiceUUID(svc) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if found != nil {
			return
		}
		found = &result
		adapter.StopScan()
	})
	close(done)

	mu.Lock()
	defer mu.Unlock()
	if found != nil {
		return *found, nil
	}
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("ble: scan: %w", err)
	}
	if ctx.Err() != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("%w: %s not advertised: %w", ErrServiceNotFound, svc.String(), ctx.Err())
	}
	return bluetooth.ScanResult{}, fmt.Errorf("%w: %s", ErrServiceNotFound, svc.String())
}

// StartNotifications enables notifications on c and forwards each payload
// to fn.
func (t *TinygoTransport) StartNotifications(c Characteristic, fn func(buf []byte)) error {
	char, ok := c.Handle().(bluetooth.DeviceCharacteristic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCharacteristic, c.UUID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.device == nil {
		return ErrNotConnected
	}

	if err := char.EnableNotifications(fn); err != nil {
		return fmt.Errorf("ble: enable notifications on %s: %w", c.UUID, err)
	}
	t.subscribed = append(t.subscribed, char)
	return nil
}

// OnDisconnect registers fn to be called when the peripheral drops the link.
func (t *TinygoTransport) OnDisconnect(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = fn
}

// Disconnect disables notifications and disconnects the peripheral.
func (t *TinygoTransport) Disconnect() error {
	t.mu.Lock()
	device := t.device
	subscribed := t.subscribed
	t.device = nil
	t.subscribed = nil
	t.mu.Unlock()

	if device == nil {
		return nil
	}

	for _, char := range subscribed {
		if err := char.EnableNotifications(nil); err != nil {
			t.log.WithError(err).WithField("uuid", char.UUID().String()).Debug("disable notifications")
		}
	}
	if err := device.Disconnect(); err != nil {
		return fmt.Errorf("ble: disconnect: %w", err)
	}
	return nil
}

var _ Transport = (*TinygoTransport)(nil)
