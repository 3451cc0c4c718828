// Package heartbeat turns notifications from the heartbeat sensor into text
// for a display: it decodes status codes, formats heart rate readings,
// routes notification channels to those handlers and owns the connection
// lifecycle.
package heartbeat

// Placeholder is shown in place of a heart rate when there is no valid
// reading.
const Placeholder = "—"

// Display is the surface that shows decoded values. Status and heart rate
// are disjoint fields, so implementations need no cross-field locking, but
// each method may be called from any goroutine.
type Display interface {
	// SetConnected toggles the connection indicator.
	SetConnected(connected bool)
	// SetStatus replaces the status text.
	SetStatus(text string)
	// SetHeartRate replaces the heart rate text.
	SetHeartRate(text string)
	// SetError reports a connection problem to the user.
	SetError(err error)
}
