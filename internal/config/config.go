// Package config loads the daemon's optional YAML configuration file.
// Every field has a flag counterpart in the daemon; explicitly set
// flags win over file values. Tank settings (calibration, capacity,
// thresholds) are not configuration, they live in the persisted record.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sweeney/tank-monitor/internal/gpio"
)

// Duration wraps time.Duration so YAML can use "1s" / "6h" syntax.
type Duration time.Duration

// UnmarshalYAML parses the standard duration string forms.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Pins selects the BCM lines for each hardware function.
type Pins struct {
	Pulse     int `yaml:"pulse"`
	Trigger   int `yaml:"trigger"`
	Echo      int `yaml:"echo"`
	LEDGreen  int `yaml:"ledGreen"`
	LEDYellow int `yaml:"ledYellow"`
	LEDRed    int `yaml:"ledRed"`
	Buzzer    int `yaml:"buzzer"`
}

// Config is the daemon's wiring and cadence configuration.
type Config struct {
	Tick      Duration `yaml:"tick"`
	Samples   int      `yaml:"samples"`
	SampleGap Duration `yaml:"sampleGap"`
	LeakAfter Duration `yaml:"leakAfter"`
	HTTPAddr  string   `yaml:"httpAddr"`
	NVRAMPath string   `yaml:"nvramPath"`
	Pins      Pins     `yaml:"pins"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Tick:      Duration(time.Second),
		Samples:   3,
		SampleGap: Duration(60 * time.Millisecond),
		LeakAfter: Duration(6 * time.Hour),
		HTTPAddr:  ":8080",
		NVRAMPath: "/var/lib/tank-monitor/nvram.bin",
		Pins: Pins{
			Pulse:     gpio.PinPulse,
			Trigger:   gpio.PinTrigger,
			Echo:      gpio.PinEcho,
			LEDGreen:  gpio.PinLEDGreen,
			LEDYellow: gpio.PinLEDYellow,
			LEDRed:    gpio.PinLEDRed,
			Buzzer:    gpio.PinBuzzer,
		},
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Tick.Std() <= 0 {
		return fmt.Errorf("tick must be positive, got %v", c.Tick.Std())
	}
	if c.Samples < 1 {
		return fmt.Errorf("samples must be at least 1, got %d", c.Samples)
	}
	if c.SampleGap.Std() < 0 {
		return fmt.Errorf("sampleGap must not be negative, got %v", c.SampleGap.Std())
	}
	if c.LeakAfter.Std() <= 0 {
		return fmt.Errorf("leakAfter must be positive, got %v", c.LeakAfter.Std())
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("httpAddr must not be empty")
	}
	if c.NVRAMPath == "" {
		return fmt.Errorf("nvramPath must not be empty")
	}

	seen := map[int]string{}
	for _, p := range []struct {
		name string
		pin  int
	}{
		{"pulse", c.Pins.Pulse},
		{"trigger", c.Pins.Trigger},
		{"echo", c.Pins.Echo},
		{"ledGreen", c.Pins.LEDGreen},
		{"ledYellow", c.Pins.LEDYellow},
		{"ledRed", c.Pins.LEDRed},
		{"buzzer", c.Pins.Buzzer},
	} {
		if p.pin < 0 {
			return fmt.Errorf("pin %s must not be negative, got %d", p.name, p.pin)
		}
		if other, dup := seen[p.pin]; dup {
			return fmt.Errorf("pin %d assigned to both %s and %s", p.pin, other, p.name)
		}
		seen[p.pin] = p.name
	}
	return nil
}
