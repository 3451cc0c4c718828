package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	goble "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
)

var (
	gobleDeviceOnce sync.Once
	gobleDeviceErr  error
)

// GobleTransport talks to the peripheral through github.com/go-ble/ble.
// Unlike tinygo it reports each characteristic's real notify property.
type GobleTransport struct {
	scanTimeout time.Duration
	log         logrus.FieldLogger

	mu           sync.Mutex
	client       goble.Client
	subscribed   []*goble.Characteristic
	onDisconnect func()
}

// NewGobleTransport returns a transport on the platform's default HCI or
// CoreBluetooth device.
func NewGobleTransport(scanTimeout time.Duration, log logrus.FieldLogger) *GobleTransport {
	return &GobleTransport{
		scanTimeout: scanTimeout,
		log:         log,
	}
}

func gobleDevice() error {
	gobleDeviceOnce.Do(func() {
		dev, err := newGobleDevice()
		if err != nil {
			gobleDeviceErr = fmt.Errorf("ble: open device: %w", err)
			return
		}
		goble.SetDefaultDevice(dev)
	})
	return gobleDeviceErr
}

// Connect scans for the service, connects and discovers its profile.
func (t *GobleTransport) Connect(ctx context.Context, serviceUUID string) ([]Characteristic, error) {
	svc, err := goble.Parse(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: parse service UUID: %w", err)
	}

	if err := gobleDevice(); err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, t.scanTimeout)
	defer cancel()

	t.log.WithField("service", serviceUUID).Info("scanning")
	client, err := goble.Connect(scanCtx, func(a goble.Advertisement) bool {
		for _, u := range a.Services() {
			if u.Equal(svc) {
				return true
			}
		}
		return false
	})
	if err != nil {
		if scanCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %s not advertised: %w", ErrServiceNotFound, serviceUUID, scanCtx.Err())
		}
		return nil, fmt.Errorf("ble: connect: %w", err)
	}

	address := client.Addr().String()
	t.log.WithField("address", address).Info("connecting")

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return nil, fmt.Errorf("ble: discover profile: %w", err)
	}

	var service *goble.Service
	for _, s := range profile.Services {
		if s.UUID.Equal(svc) {
			service = s
			break
		}
	}
	if service == nil {
		client.CancelConnection()
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceUUID)
	}

	out := make([]Characteristic, 0, len(service.Characteristics))
	for _, char := range service.Characteristics {
		c := NewCharacteristic(char.UUID.String(), char.Property&goble.CharNotify != 0, char)
		t.log.WithFields(logrus.Fields{"uuid": c.UUID, "notify": c.Notify}).Debug("found characteristic")
		out = append(out, c)
	}

	t.mu.Lock()
	t.client = client
	t.subscribed = nil
	t.mu.Unlock()

	go t.watch(client)

	t.log.WithField("address", address).Info("connected")
	return out, nil
}

// watch fires the disconnect callback when client's link drops, unless the
// drop was requested through Disconnect.
func (t *GobleTransport) watch(client goble.Client) {
	<-client.Disconnected()

	t.mu.Lock()
	ours := t.client == client
	cb := t.onDisconnect
	if ours {
		t.client = nil
		t.subscribed = nil
	}
	t.mu.Unlock()

	if ours && cb != nil {
		t.log.WithField("address", client.Addr().String()).Warn("peripheral disconnected")
		cb()
	}
}

// StartNotifications subscribes fn to notifications on c.
func (t *GobleTransport) StartNotifications(c Characteristic, fn func(buf []byte)) error {
	char, ok := c.Handle().(*goble.Characteristic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCharacteristic, c.UUID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return ErrNotConnected
	}

	if err := t.client.Subscribe(char, false, fn); err != nil {
		return fmt.Errorf("ble: subscribe %s: %w", c.UUID, err)
	}
	t.subscribed = append(t.subscribed, char)
	return nil
}

// OnDisconnect registers fn to be called when the peripheral drops the link.
func (t *GobleTransport) OnDisconnect(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = fn
}

// Disconnect unsubscribes everything and cancels the connection.
func (t *GobleTransport) Disconnect() error {
	t.mu.Lock()
	client := t.client
	subscribed := t.subscribed
	t.client = nil
	t.subscribed = nil
	t.mu.Unlock()

	if client == nil {
		return nil
	}

	for _, char := range subscribed {
		if err := client.Unsubscribe(char, false); err != nil {
			t.log.WithError(err).WithField("uuid", char.UUID.String()).Debug("unsubscribe")
		}
	}
	if err := client.CancelConnection(); err != nil {
		return fmt.Errorf("ble: disconnect: %w", err)
	}
	return nil
}

var _ Transport = (*GobleTransport)(nil)
