package ble

import (
	goble "github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func newGobleDevice() (goble.Device, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		return nil, err
	}
	return dev, nil
}
