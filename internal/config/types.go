package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rennerdo30/radiogate/internal/radio"
)

// Duration is a time.Duration that can be unmarshaled from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MeshAddr is a 64-bit mesh address written in hex (0x...) or decimal.
type MeshAddr radio.Addr

// UnmarshalYAML takes the raw scalar text so that hex literals larger than
// an int64 still parse.
func (a *MeshAddr) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: mesh address must be a scalar", value.Line)
	}
	addr, err := radio.ParseAddr(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*a = MeshAddr(addr)
	return nil
}

func (a MeshAddr) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("0x%016X", uint64(a)), nil
}

func (a MeshAddr) Addr() radio.Addr {
	return radio.Addr(a)
}
