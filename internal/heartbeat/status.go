package heartbeat

// Status codes reported by the sensor hub.
const (
	StatusIdle           = 0
	StatusConnecting     = 1
	StatusFingerStill    = 250
	StatusNotFinger      = 251
	StatusReducePressure = 252
	StatusPlaceFinger    = 253
	StatusKeepStill      = 254
	StatusMeasuring      = 255
)

var statusTable = [...]struct {
	code    int
	message string
}{
	{StatusIdle, ""},
	{StatusConnecting, "Connecting ..."},
	{StatusFingerStill, "Keep finger still"},
	{StatusNotFinger, "You sure that's a finger?"},
	{StatusReducePressure, "Reduce pressure on sensor"},
	{StatusPlaceFinger, "Place finger on sensor"},
	{StatusKeepStill, "Keep sensor still"},
	{StatusMeasuring, "Measuring ..."},
}

// StatusMessage returns the text for code, or the idle text ("") when the
// code is unknown.
func StatusMessage(code int) string {
	for _, e := range statusTable {
		if e.code == code {
			return e.message
		}
	}
	return statusTable[0].message
}

// StatusUpdate is what a status notification does to the display.
type StatusUpdate struct {
	Message string
	// ResetRate is set for every non-idle code: no reading is valid then.
	ResetRate bool
}

// DecodeStatus maps a status code to its display update.
func DecodeStatus(code int) StatusUpdate {
	return StatusUpdate{
		Message:   StatusMessage(code),
		ResetRate: code != StatusIdle,
	}
}

// Apply writes u to d.
func (u StatusUpdate) Apply(d Display) {
	d.SetStatus(u.Message)
	if u.ResetRate {
		d.SetHeartRate(Placeholder)
	}
}
