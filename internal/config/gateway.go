package config

import (
	"fmt"
	"net"

	"github.com/rennerdo30/radiogate/internal/addrcache"
	"github.com/rennerdo30/radiogate/internal/device"
	"github.com/rennerdo30/radiogate/internal/gateway"
	"github.com/rennerdo30/radiogate/internal/logging"
	"github.com/rennerdo30/radiogate/internal/radio"
)

// Config is the main configuration for radiogate.
type Config struct {
	Mesh      MeshConfig     `yaml:"mesh" json:"mesh"`
	Interface device.Config  `yaml:"interface" json:"interface"`
	Cache     CacheConfig    `yaml:"cache" json:"cache"`
	Serial    SerialConfig   `yaml:"serial" json:"serial"`
	Queue     QueueConfig    `yaml:"queue" json:"queue"`
	API       APIConfig      `yaml:"api" json:"api"`
	Logging   logging.Config `yaml:"logging" json:"logging"`
}

// MeshConfig describes this node's place on the radio mesh.
type MeshConfig struct {
	Address             MeshAddr `yaml:"address" json:"address"`
	BroadcastEverything bool     `yaml:"broadcast_everything" json:"broadcast_everything"`
	MaxFrameSize        int      `yaml:"max_frame_size" json:"max_frame_size"` // 0 = no limit
}

// CacheConfig contains address cache settings.
type CacheConfig struct {
	Lifetime      Duration `yaml:"lifetime" json:"lifetime"`
	SweepInterval Duration `yaml:"sweep_interval" json:"sweep_interval"` // 0 = never sweep
}

// SerialConfig describes the serial line to the radio module.
type SerialConfig struct {
	Port string `yaml:"port" json:"port"`
	Baud int    `yaml:"baud" json:"baud"`
}

// QueueConfig sizes the outbound transmit queue.
type QueueConfig struct {
	Size int `yaml:"size" json:"size"`
}

// APIConfig contains status API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
	Token   string `yaml:"token" json:"token,omitempty"` // optional bearer token

	MaxConnections int `yaml:"max_connections" json:"max_connections"` // 0 = unlimited
}

// DefaultConfig returns a configuration with sensible defaults. The mesh
// address has no default and must be set.
func DefaultConfig() Config {
	return Config{
		Interface: device.Config{
			Name: device.DefaultDeviceName(),
			MTU:  device.DefaultMTU,
		},
		Cache: CacheConfig{
			Lifetime: Duration(addrcache.DefaultLifetime),
		},
		Serial: SerialConfig{
			Port: "/dev/ttyUSB0",
			Baud: 9600,
		},
		Queue: QueueConfig{
			Size: radio.DefaultQueueSize,
		},
		API: APIConfig{
			Enabled:        false,
			Listen:         "127.0.0.1:8089",
			MaxConnections: 16,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Validate validates the configuration and fills in the interface name
// when it is empty.
func (c *Config) Validate() error {
	if c.Mesh.Address == 0 {
		return fmt.Errorf("mesh.address is required")
	}
	if c.Mesh.MaxFrameSize < 0 {
		return fmt.Errorf("mesh.max_frame_size must not be negative")
	}

	if err := c.Interface.Validate(); err != nil {
		return fmt.Errorf("interface: %w", err)
	}

	if c.Cache.Lifetime.Duration() <= 0 {
		return fmt.Errorf("cache.lifetime must be positive")
	}
	if c.Cache.SweepInterval.Duration() < 0 {
		return fmt.Errorf("cache.sweep_interval must not be negative")
	}

	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required")
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive")
	}

	if c.Queue.Size <= 0 {
		return fmt.Errorf("queue.size must be positive")
	}

	if c.API.Enabled {
		if _, _, err := net.SplitHostPort(c.API.Listen); err != nil {
			return fmt.Errorf("api.listen: %w", err)
		}
	}
	if c.API.MaxConnections < 0 {
		return fmt.Errorf("api.max_connections must not be negative")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}

// GatewayConfig returns the gateway settings described by c.
func (c *Config) GatewayConfig() gateway.Config {
	return gateway.Config{
		LocalAddr:           c.Mesh.Address.Addr(),
		BroadcastEverything: c.Mesh.BroadcastEverything,
		CacheLifetime:       c.Cache.Lifetime.Duration(),
		SweepInterval:       c.Cache.SweepInterval.Duration(),
	}
}
