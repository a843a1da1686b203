package modsim

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      Server         `json:"server"`
	Registers   int            `json:"registers"`
	Identity    DeviceIdentity `json:"identity"`
	Simulations []Simulation   `json:"simulations"`
	Display     Display        `json:"display"`
}

type Server struct {
	Url        string `json:"url"`
	Timeout    int    `json:"timeout"` // client idle timeout in milliseconds
	MaxClients uint   `json:"max_clients"`
}

// Simulation configures a generator started at boot.
type Simulation struct {
	Register int `json:"register"`
	Range    int `json:"range,omitempty"`
	Period   int `json:"period,omitempty"` // milliseconds
	MaxStep  int `json:"max_step,omitempty"`
}

type Display struct {
	Registers []int `json:"registers"`
	Refresh   int   `json:"refresh"` // milliseconds between redraws
	Page      int   `json:"page"`    // milliseconds a page stays on screen
}

func DefaultConfig() Config {
	return Config{
		Server: Server{
			Url:        "tcp://0.0.0.0:502",
			Timeout:    30000,
			MaxClients: 10,
		},
		Registers: DefaultSize,
		Identity:  DefaultIdentity(),
		Display: Display{
			Refresh: 50,
			Page:    2000,
		},
	}
}

// Walk converts the simulation settings into a Walk. Unset fields take the
// DefaultWalk values.
func (s Simulation) Walk() (Walk, error) {
	w := DefaultWalk()
	if s.Range != 0 {
		if s.Range < 0 || s.Range > 0xFFFF {
			return Walk{}, fmt.Errorf("%w: range %d not in [0, 65535]", ErrInvalidWalk, s.Range)
		}
		w.Range = uint16(s.Range)
	}
	if s.Period != 0 {
		w.Period = time.Duration(s.Period) * time.Millisecond
	}
	if s.MaxStep != 0 {
		if s.MaxStep < 0 || s.MaxStep > 0xFFFF {
			return Walk{}, fmt.Errorf("%w: max step %d not in [0, 65535]", ErrInvalidWalk, s.MaxStep)
		}
		w.MaxStep = uint16(s.MaxStep)
	}
	return w, w.Validate()
}

func (s Server) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Millisecond
}

// LoadConfig reads config.json from configPath on top of DefaultConfig.
func LoadConfig(configPath string) (Config, error) {
	if !exists(path.Join(configPath, "config.json")) {
		return Config{}, fmt.Errorf("configuration file not found: %s", path.Join(configPath, "config.json"))
	}

	bb, err := os.ReadFile(path.Join(configPath, "config.json"))
	if err != nil {
		return Config{}, fmt.Errorf("error reading file: %w", err)
	}
	config := DefaultConfig()
	if err := json.NewDecoder(bytes.NewReader(bb)).Decode(&config); err != nil {
		return Config{}, fmt.Errorf("error decoding file: %w", err)
	}
	return config, nil
}

// ApplyEnv loads the given .env files (missing files are ignored) and applies
// MODSIM_URL, MODSIM_REGISTERS and MODSIM_MAX_CLIENTS on top of c.
func (c *Config) ApplyEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}

	if v, ok := os.LookupEnv("MODSIM_URL"); ok {
		c.Server.Url = v
	}
	if v, ok := os.LookupEnv("MODSIM_REGISTERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MODSIM_REGISTERS: %w", err)
		}
		c.Registers = n
	}
	if v, ok := os.LookupEnv("MODSIM_MAX_CLIENTS"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("MODSIM_MAX_CLIENTS: %w", err)
		}
		c.Server.MaxClients = uint(n)
	}
	return nil
}

func exists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil || !os.IsNotExist(err)
}
