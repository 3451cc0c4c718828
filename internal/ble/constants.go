package ble

const (
	// ServiceUUID is the heartbeat sensor service advertised by the peripheral
	ServiceUUID = "465a640e-7553-5ddc-86c9-b3e59919c36d"

	// StatusCharUUID notifies the sensor contact/measurement status code
	StatusCharUUID = "e7ea0fb5-4f46-4241-8825-a3fa60acbb71"

	// RateCharUUID notifies the heart rate in beats per minute
	RateCharUUID = "6e4a51f1-859d-4323-b984-0e8968fc8ade"
)
