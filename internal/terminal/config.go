package terminal

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the device terminal configuration
type Config struct {
	ServerURL string `yaml:"server_url"`
	WSURL     string `yaml:"ws_url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	StatePath string `yaml:"state_path"`

	KanbanInterval        time.Duration `yaml:"kanban_interval"`
	CutterInterval        time.Duration `yaml:"cutter_interval"`
	OperatorCheckInterval time.Duration `yaml:"operator_check_interval"`
	OperatorIdleTimeout   time.Duration `yaml:"operator_idle_timeout"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`

	// WebSocket settings
	WSReconnectDelay time.Duration `yaml:"ws_reconnect_delay"`
	WSMaxReconnect   time.Duration `yaml:"ws_max_reconnect_delay"`
	WSPingInterval   time.Duration `yaml:"ws_ping_interval"`

	// CutterRoutes maps a cutter device to the spreaders it takes work from
	CutterRoutes map[string][]string `yaml:"cutter_routes"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		ServerURL:             "http://localhost:5000",
		WSURL:                 "ws://localhost:5000/ws",
		StatePath:             "terminal-state.yaml",
		KanbanInterval:        5 * time.Minute,
		CutterInterval:        30 * time.Second,
		OperatorCheckInterval: 30 * time.Minute,
		OperatorIdleTimeout:   4 * time.Hour,
		RequestTimeout:        15 * time.Second,
		WSReconnectDelay:      1 * time.Second,
		WSMaxReconnect:        30 * time.Second,
		WSPingInterval:        30 * time.Second,
	}
}

// LoadConfig loads configuration from path on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("TERMINAL_PASSWORD"); v != "" {
		cfg.Password = v
	}

	cfg.ConfigPath = path
	return cfg, nil
}
