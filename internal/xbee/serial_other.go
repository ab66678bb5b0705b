//go:build !linux

package xbee

import (
	"errors"
	"os"
)

// OpenSerial is only implemented on Linux.
func OpenSerial(path string, baud int) (*os.File, error) {
	return nil, errors.New("serial ports are not supported on this platform")
}
