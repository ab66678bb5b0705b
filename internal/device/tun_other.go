//go:build !linux

package device

// createPlatformTUN returns an error on unsupported platforms.
func createPlatformTUN(cfg Config) (NetworkDevice, error) {
	return nil, ErrDeviceNotSupported
}
