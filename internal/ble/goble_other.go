//go:build !linux && !darwin

package ble

import (
	"errors"

	goble "github.com/go-ble/ble"
)

func newGobleDevice() (goble.Device, error) {
	return nil, errors.New("go-ble backend is only available on linux and darwin")
}
