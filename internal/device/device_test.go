package device

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		cfg := Config{}
		err := cfg.Validate()
		require.NoError(t, err)

		assert.Equal(t, DefaultDeviceName(), cfg.Name)
		assert.Empty(t, cfg.Address)
		assert.Equal(t, DefaultMTU, cfg.MTU)
	})

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid IPv4 address",
			cfg:  Config{Name: "radio1", Address: "10.99.0.1/24", MTU: 1280},
		},
		{
			name: "valid IPv6 address",
			cfg:  Config{Name: "radio1", Address: "fd00:99::1/64"},
		},
		{
			name: "small radio MTU",
			cfg:  Config{Name: "radio1", MTU: 256},
		},
		{
			name:    "invalid address",
			cfg:     Config{Address: "invalid"},
			wantErr: "invalid device address",
		},
		{
			name:    "address without prefix",
			cfg:     Config{Address: "10.99.0.1"},
			wantErr: "invalid device address",
		},
		{
			name:    "MTU too large",
			cfg:     Config{MTU: 70000},
			wantErr: "MTU too large",
		},
		{
			name:    "MTU too small",
			cfg:     Config{MTU: 20},
			wantErr: "MTU too small",
		},
		{
			name:    "name too long",
			cfg:     Config{Name: strings.Repeat("r", 16)},
			wantErr: "interface name too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDefaultDeviceName(t *testing.T) {
	assert.Equal(t, "radio0", DefaultDeviceName())
}

func TestDeviceError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &DeviceError{Op: "read", Err: errors.New("custom error")}
		assert.Equal(t, "device read: custom error", err.Error())
	})

	t.Run("errors.Is works with wrapped error", func(t *testing.T) {
		err := &DeviceError{Op: "create", Err: ErrPermissionDenied}
		assert.True(t, errors.Is(err, ErrPermissionDenied))
		assert.Equal(t, ErrPermissionDenied, err.Unwrap())
	})
}

func TestCreateTUNValidation(t *testing.T) {
	_, err := CreateTUN(Config{Address: "invalid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid device address")
}
