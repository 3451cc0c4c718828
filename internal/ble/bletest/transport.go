// Package bletest provides an in-memory ble.Transport for driving the
// heartbeat core without hardware.
package bletest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vitaminmoo/ble-heartbeat/internal/ble"
)

// Transport is a scripted ble.Transport. Connect returns Chars or Err;
// notifications are injected with Notify.
type Transport struct {
	mu sync.Mutex

	// Chars is returned by a successful Connect.
	Chars []ble.Characteristic
	// Err, when set, fails Connect.
	Err error
	// SubscribeErr maps a UUID to an error returned by StartNotifications.
	SubscribeErr map[string]error

	connectCalls  int
	lastService   string
	connected     bool
	subscriptions map[string][]func([]byte)
	onDisconnect  func()
	disconnects   int
}

// New returns a Transport that will report chars on Connect.
func New(chars ...ble.Characteristic) *Transport {
	return &Transport{Chars: chars}
}

// Char is shorthand for ble.NewCharacteristic without a handle.
func Char(uuid string, notify bool) ble.Characteristic {
	return ble.NewCharacteristic(uuid, notify, nil)
}

func (t *Transport) Connect(ctx context.Context, serviceUUID string) ([]ble.Characteristic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.connectCalls++
	t.lastService = serviceUUID
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.Err != nil {
		return nil, t.Err
	}
	t.connected = true
	t.subscriptions = make(map[string][]func([]byte))
	out := make([]ble.Characteristic, len(t.Chars))
	copy(out, t.Chars)
	return out, nil
}

func (t *Transport) StartNotifications(c ble.Characteristic, fn func([]byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return ble.ErrNotConnected
	}
	if err := t.SubscribeErr[c.UUID]; err != nil {
		return err
	}
	known := false
	for _, ch := range t.Chars {
		if ch.UUID == c.UUID {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", ble.ErrUnknownCharacteristic, c.UUID)
	}
	t.subscriptions[c.UUID] = append(t.subscriptions[c.UUID], fn)
	return nil
}

func (t *Transport) OnDisconnect(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = fn
}

func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		t.disconnects++
	}
	t.connected = false
	t.subscriptions = nil
	return nil
}

// Notify delivers buf to every subscriber of uuid and reports how many
// callbacks ran.
func (t *Transport) Notify(uuid string, buf []byte) int {
	t.mu.Lock()
	subs := slices.Clone(t.subscriptions[uuid])
	t.mu.Unlock()

	for _, fn := range subs {
		fn(buf)
	}
	return len(subs)
}

// Drop simulates the peripheral going away.
func (t *Transport) Drop() {
	t.mu.Lock()
	t.connected = false
	t.subscriptions = nil
	cb := t.onDisconnect
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Subscribed returns the UUIDs with at least one subscription and the
// subscription count per UUID.
func (t *Transport) Subscribed() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.subscriptions))
	for uuid, subs := range t.subscriptions {
		out[uuid] = len(subs)
	}
	return out
}

// ConnectCalls returns how many times Connect ran.
func (t *Transport) ConnectCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectCalls
}

// LastService returns the service UUID passed to the last Connect.
func (t *Transport) LastService() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastService
}

// Disconnects returns how many times a live connection was torn down.
func (t *Transport) Disconnects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnects
}

var _ ble.Transport = (*Transport)(nil)
