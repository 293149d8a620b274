// Package config loads the cellwatch daemon configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/DRuggeri/cellwatch/permissions"
	"gopkg.in/yaml.v3"
)

const (
	PermissionsStatic = "static"
	PermissionsFile   = "file"

	ScannerModem   = "modem"
	ScannerFixture = "fixture"
)

type PermissionsConfig struct {
	Mode        string                            `yaml:"mode" json:"mode"`
	GrantsFile  string                            `yaml:"grants-file" json:"grantsFile"`
	RequestFile string                            `yaml:"request-file" json:"requestFile"`
	Devices     map[permissions.Permission]string `yaml:"devices" json:"devices"`
	GrantAll    bool                              `yaml:"grant-all" json:"grantAll"` // static mode only
}

type ScannerConfig struct {
	Mode    string        `yaml:"mode" json:"mode"`
	Port    string        `yaml:"port" json:"port"`
	Baud    uint          `yaml:"baud" json:"baud"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	Fixture string        `yaml:"fixture" json:"fixture"`
}

type StatusinatorConfig struct {
	Port string `yaml:"port" json:"port"` // empty disables the display
}

type Config struct {
	Listen         string             `yaml:"listen" json:"listen"`
	LogLevel       string             `yaml:"log-level" json:"logLevel"`
	ResumeInterval time.Duration      `yaml:"resume-interval" json:"resumeInterval"`
	ScanInterval   time.Duration      `yaml:"scan-interval" json:"scanInterval"`
	Permissions    PermissionsConfig  `yaml:"permissions" json:"permissions"`
	Scanner        ScannerConfig      `yaml:"scanner" json:"scanner"`
	Statusinator   StatusinatorConfig `yaml:"statusinator" json:"statusinator"`
	WatchPaths     []string           `yaml:"watch-paths" json:"watchPaths"`
}

func Default() *Config {
	return &Config{
		Listen:         ":8080",
		LogLevel:       "info",
		ResumeInterval: time.Minute,
		ScanInterval:   5 * time.Second,
		Permissions: PermissionsConfig{
			Mode:        PermissionsFile,
			GrantsFile:  "/etc/cellwatch/grants.yaml",
			RequestFile: "/run/cellwatch/request.yaml",
			Devices: map[permissions.Permission]string{
				permissions.PhoneState: "/dev/ttyUSB2",
			},
		},
		Scanner: ScannerConfig{
			Mode:    ScannerModem,
			Port:    "/dev/ttyUSB2",
			Baud:    115200,
			Timeout: 2 * time.Second,
		},
	}
}

// LoadConfig returns the defaults overlaid with filename. Defaults are
// returned as well when the file cannot be read or parsed.
func LoadConfig(filename string) (*Config, error) {
	config := Default()

	if filename == "" {
		return config, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return config, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen must not be empty"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log-level %q", c.LogLevel))
	}
	if c.ResumeInterval <= 0 {
		errs = append(errs, errors.New("resume-interval must be positive"))
	}
	if c.ScanInterval <= 0 {
		errs = append(errs, errors.New("scan-interval must be positive"))
	}

	switch c.Permissions.Mode {
	case PermissionsStatic:
	case PermissionsFile:
		if c.Permissions.GrantsFile == "" {
			errs = append(errs, errors.New("permissions.grants-file is required in file mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown permissions.mode %q", c.Permissions.Mode))
	}
	for p := range c.Permissions.Devices {
		if !p.IsValid() {
			errs = append(errs, fmt.Errorf("unknown permission %q in permissions.devices", p))
		}
	}

	switch c.Scanner.Mode {
	case ScannerModem:
		if c.Scanner.Port == "" {
			errs = append(errs, errors.New("scanner.port is required in modem mode"))
		}
		if c.Scanner.Timeout <= 0 {
			errs = append(errs, errors.New("scanner.timeout must be positive"))
		}
	case ScannerFixture:
		if c.Scanner.Fixture == "" {
			errs = append(errs, errors.New("scanner.fixture is required in fixture mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown scanner.mode %q", c.Scanner.Mode))
	}

	return errors.Join(errs...)
}
