package heartbeat

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vitaminmoo/ble-heartbeat/internal/ble"
	"github.com/vitaminmoo/ble-heartbeat/internal/config"
	"github.com/vitaminmoo/ble-heartbeat/internal/util"
)

// Channel names the handler a characteristic is routed to.
type Channel int

const (
	ChannelNone Channel = iota
	ChannelStatus
	ChannelRate
)

func (c Channel) String() string {
	switch c {
	case ChannelStatus:
		return "status"
	case ChannelRate:
		return "heart-rate"
	default:
		return "-"
	}
}

// Binding records one subscription made by the Router.
type Binding struct {
	UUID    string
	Channel Channel
}

// Router subscribes the notifying status and heart rate characteristics to
// their handlers. Every other characteristic is ignored.
type Router struct {
	transport  ble.Transport
	display    Display
	statusUUID string
	rateUUID   string
	log        logrus.FieldLogger
}

// NewRouter returns a Router matching statusUUID and rateUUID exactly after
// canonicalisation.
func NewRouter(t ble.Transport, d Display, statusUUID, rateUUID string, log logrus.FieldLogger) *Router {
	return &Router{
		transport:  t,
		display:    d,
		statusUUID: ble.CanonicalUUID(statusUUID),
		rateUUID:   ble.CanonicalUUID(rateUUID),
		log:        log,
	}
}

// ChannelFor reports where c would be routed. Characteristics without
// notify support never route.
func (r *Router) ChannelFor(c ble.Characteristic) Channel {
	if !c.Notify {
		return ChannelNone
	}
	switch c.UUID {
	case r.statusUUID:
		return ChannelStatus
	case r.rateUUID:
		return ChannelRate
	default:
		return ChannelNone
	}
}

// Route binds each routable characteristic to its handler. A failed
// subscription does not stop the others; all failures are joined into the
// returned error alongside the bindings that succeeded.
func (r *Router) Route(chars []ble.Characteristic) ([]Binding, error) {
	var bindings []Binding
	var errs []error

	for _, c := range chars {
		ch := r.ChannelFor(c)
		var handler func([]byte)
		switch ch {
		case ChannelStatus:
			handler = r.handleStatus
		case ChannelRate:
			handler = r.handleRate
		default:
			r.log.WithFields(logrus.Fields{"uuid": c.UUID, "notify": c.Notify}).Debug("not routed")
			continue
		}

		if err := r.transport.StartNotifications(c, handler); err != nil {
			errs = append(errs, fmt.Errorf("%s channel: %w", ch, err))
			continue
		}
		r.log.WithFields(logrus.Fields{"uuid": c.UUID, "channel": ch.String()}).Info("subscribed")
		bindings = append(bindings, Binding{UUID: c.UUID, Channel: ch})
	}

	return bindings, errors.Join(errs...)
}

func (r *Router) handleStatus(buf []byte) {
	r.trace("status", buf)
	code, err := ble.StatusCode(buf)
	if err != nil {
		r.log.WithError(err).Warn("dropping status notification")
		return
	}
	DecodeStatus(code).Apply(r.display)
}

func (r *Router) handleRate(buf []byte) {
	r.trace("heart-rate", buf)
	bpm, ok := ble.HeartRate(buf)
	if !ok && len(buf) > 0 {
		r.log.WithField("len", len(buf)).Debug("heart rate payload has unexpected width")
	}
	r.display.SetHeartRate(FormatHeartRate(Reading{BPM: bpm, Present: ok}))
}

func (r *Router) trace(channel string, buf []byte) {
	if !config.Verbose {
		return
	}
	r.log.WithField("channel", channel).Debugf("notification %d bytes\n%s", len(buf), util.HexDump(buf))
}
