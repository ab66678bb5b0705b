// Package device provides the host-side virtual network interface: a TUN
// device that carries raw IP packets with no link-layer framing.
package device

import (
	"errors"
	"fmt"
	"net/netip"
)

// NetworkDevice represents a TUN network interface.
type NetworkDevice interface {
	// Name returns the interface name assigned by the OS, which may differ
	// from the requested one.
	Name() string

	// Read reads one IP packet from the device.
	Read(buf []byte) (int, error)

	// Write writes one IP packet to the device.
	Write(buf []byte) (int, error)

	// Close closes the device and releases resources.
	Close() error

	// MTU returns the Maximum Transmission Unit.
	MTU() int
}

// Config contains network device configuration.
type Config struct {
	Name    string `yaml:"name"`    // Requested interface name (e.g., "radio0")
	Address string `yaml:"address"` // Optional IP address with prefix (e.g., "10.99.0.1/24")
	MTU     int    `yaml:"mtu"`     // MTU size (default: 1500)
}

// Limits for Config.MTU.
const (
	DefaultMTU = 1500
	MinMTU     = 68
	MaxMTU     = 65535
)

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	if c.Name == "" {
		c.Name = DefaultDeviceName()
	}
	if len(c.Name) >= ifNameSize {
		return fmt.Errorf("interface name too long: %q (max %d bytes)", c.Name, ifNameSize-1)
	}

	if c.Address != "" {
		prefix, err := netip.ParsePrefix(c.Address)
		if err != nil {
			return fmt.Errorf("invalid device address: %w", err)
		}
		if !prefix.IsValid() {
			return errors.New("invalid device address prefix")
		}
	}

	if c.MTU <= 0 {
		c.MTU = DefaultMTU
	}
	if c.MTU > MaxMTU {
		return fmt.Errorf("MTU too large: %d (max %d)", c.MTU, MaxMTU)
	}
	if c.MTU < MinMTU {
		return fmt.Errorf("MTU too small: %d (min %d)", c.MTU, MinMTU)
	}

	return nil
}

// ifNameSize is IFNAMSIZ, including the trailing NUL.
const ifNameSize = 16

// DefaultDeviceName returns the interface name used when none is configured.
func DefaultDeviceName() string {
	return "radio0"
}

// CreateTUN validates cfg and creates a TUN device.
func CreateTUN(cfg Config) (NetworkDevice, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return createPlatformTUN(cfg)
}

// DeviceError represents a device-specific error.
type DeviceError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Common device errors.
var (
	ErrDeviceNotSupported  = errors.New("TUN devices not supported on this platform")
	ErrPermissionDenied    = errors.New("permission denied: device creation requires root or CAP_NET_ADMIN")
	ErrDeviceAlreadyExists = errors.New("device already exists")
	ErrDeviceClosed        = errors.New("device is closed")
)
