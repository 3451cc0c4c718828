package heartbeat

import "strconv"

// Reading is a heart rate in beats per minute. Present is false when the
// notification carried no usable value.
type Reading struct {
	BPM     float64
	Present bool
}

// FormatHeartRate renders r, or Placeholder unless r is present and
// strictly positive.
func FormatHeartRate(r Reading) string {
	if !r.Present || !(r.BPM > 0) {
		return Placeholder
	}
	return strconv.FormatFloat(r.BPM, 'f', -1, 64)
}
