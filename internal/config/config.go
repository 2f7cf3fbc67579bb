// Package config loads the server's typed configuration from CLI flags, an
// optional config file, and environment variables, following the teacher's
// internal/config/config.go pattern: a fresh *viper.Viper instance (no
// global state), explicit BindEnv calls per field, and flags applied last so
// they win over file/env values.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of tunables for a quiznet server process.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Accounts  AccountsConfig
	Questions QuestionsConfig
	Admin     AdminConfig
}

// ServerConfig carries the network identity of the process.
type ServerConfig struct {
	Name     string `mapstructure:"name"`
	TCPPort  int    `mapstructure:"tcp_port"`
	UDPPort  int    `mapstructure:"udp_port"`
	MaxConns int    `mapstructure:"max_conns"`
}

// SessionConfig carries the session engine's timing and capacity knobs.
type SessionConfig struct {
	MaxSessions          int           `mapstructure:"max_sessions"`
	MaxPlayersPerSession int           `mapstructure:"max_players_per_session"`
	StartCountdown       time.Duration `mapstructure:"start_countdown"`
	InterQuestionDelay   time.Duration `mapstructure:"inter_question_delay"`
	LastPlayerPenalty    bool          `mapstructure:"last_player_penalty"`
	SendQueueSize        int           `mapstructure:"send_queue_size"`
}

// AccountsConfig selects and configures the account store backend.
type AccountsConfig struct {
	Backend     string `mapstructure:"backend"` // "file" (default) or "postgres"
	FilePath    string `mapstructure:"file_path"`
	Capacity    int    `mapstructure:"capacity"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// QuestionsConfig points at the question bank's convenience file loader.
type QuestionsConfig struct {
	FilePath string `mapstructure:"file_path"`
}

// AdminConfig carries the observability HTTP surface's bind address.
type AdminConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

// defaults mirror the reference implementation's compiled-in constants
// (types.h) except where SPEC_FULL.md's ambient stack makes them
// configurable.
func defaults() Config {
	return Config{
		Server: ServerConfig{
			Name:     "quiznet-server",
			TCPPort:  5556,
			UDPPort:  5555,
			MaxConns: 100,
		},
		Session: SessionConfig{
			MaxSessions:          20,
			MaxPlayersPerSession: 10,
			StartCountdown:       3 * time.Second,
			InterQuestionDelay:   5 * time.Second,
			LastPlayerPenalty:    true,
			SendQueueSize:        32,
		},
		Accounts: AccountsConfig{
			Backend:  "file",
			FilePath: "data/accounts.dat",
			Capacity: 100,
		},
		Questions: QuestionsConfig{
			FilePath: "data/questions.dat",
		},
		Admin: AdminConfig{
			Addr:    ":9556",
			Enabled: true,
		},
	}
}

// Flags holds parsed CLI flag values. Load applies the non-zero ones over
// the Config resolved by Viper; they are not bound into the Viper instance.
type Flags struct {
	ConfigPath string
	TCPPort    int
	UDPPort    int
	Name       string
	AdminAddr  string
	Questions  string
	Accounts   string
}

// RegisterFlags defines the CLI surface from SPEC_FULL.md §6/§10 on fs and
// returns a Flags struct whose fields are populated once fs.Parse runs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigPath, "config", "", "path to an optional config file")
	fs.IntVar(&f.TCPPort, "tcp", 0, "TCP port for the game protocol (default 5556)")
	fs.IntVar(&f.UDPPort, "udp", 0, "UDP port for LAN discovery (default 5555)")
	fs.StringVar(&f.Name, "name", "", "server display name advertised over discovery")
	fs.StringVar(&f.AdminAddr, "admin", "", "address for the health/metrics HTTP surface")
	fs.StringVar(&f.Questions, "questions", "", "path to the question bank file")
	fs.StringVar(&f.Accounts, "accounts", "", "path to the account store file")
	return f
}

// Load builds the final Config from defaults, an optional config file, env
// vars and CLI flags (later sources override earlier ones).
func Load(flags *Flags) (*Config, error) {
	vip := viper.New()

	vip.BindEnv("server.name", "QUIZNET_SERVER_NAME")
	vip.BindEnv("server.tcp_port", "QUIZNET_TCP_PORT")
	vip.BindEnv("server.udp_port", "QUIZNET_UDP_PORT")
	vip.BindEnv("server.max_conns", "QUIZNET_MAX_CONNS")
	vip.BindEnv("session.max_sessions", "QUIZNET_MAX_SESSIONS")
	vip.BindEnv("session.max_players_per_session", "QUIZNET_MAX_PLAYERS_PER_SESSION")
	vip.BindEnv("session.last_player_penalty", "QUIZNET_LAST_PLAYER_PENALTY")
	vip.BindEnv("accounts.backend", "QUIZNET_ACCOUNTS_BACKEND")
	vip.BindEnv("accounts.file_path", "QUIZNET_ACCOUNTS_FILE")
	vip.BindEnv("accounts.postgres_dsn", "QUIZNET_ACCOUNTS_POSTGRES_DSN")
	vip.BindEnv("questions.file_path", "QUIZNET_QUESTIONS_FILE")
	vip.BindEnv("admin.addr", "QUIZNET_ADMIN_ADDR")
	vip.BindEnv("admin.enabled", "QUIZNET_ADMIN_ENABLED")

	def := defaults()
	vip.SetDefault("server", def.Server)
	vip.SetDefault("session", def.Session)
	vip.SetDefault("accounts", def.Accounts)
	vip.SetDefault("questions", def.Questions)
	vip.SetDefault("admin", def.Admin)

	if flags != nil && flags.ConfigPath != "" {
		vip.SetConfigFile(flags.ConfigPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("[Config] config file %q not found, using env/defaults/flags", flags.ConfigPath)
			} else {
				log.Printf("[Config] warning: could not read config file %q: %v", flags.ConfigPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyFlagOverrides(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyFlagOverrides(cfg *Config, flags *Flags) {
	if flags == nil {
		return
	}
	if flags.TCPPort != 0 {
		cfg.Server.TCPPort = flags.TCPPort
	}
	if flags.UDPPort != 0 {
		cfg.Server.UDPPort = flags.UDPPort
	}
	if flags.Name != "" {
		cfg.Server.Name = flags.Name
	}
	if flags.AdminAddr != "" {
		cfg.Admin.Addr = flags.AdminAddr
	}
	if flags.Questions != "" {
		cfg.Questions.FilePath = flags.Questions
	}
	if flags.Accounts != "" {
		cfg.Accounts.FilePath = flags.Accounts
	}
}

func validate(cfg *Config) error {
	if cfg.Server.TCPPort <= 0 || cfg.Server.TCPPort > 65535 {
		return fmt.Errorf("config: invalid tcp port %d", cfg.Server.TCPPort)
	}
	if cfg.Server.UDPPort <= 0 || cfg.Server.UDPPort > 65535 {
		return fmt.Errorf("config: invalid udp port %d", cfg.Server.UDPPort)
	}
	if cfg.Accounts.Backend != "file" && cfg.Accounts.Backend != "postgres" {
		return fmt.Errorf("config: unknown accounts backend %q", cfg.Accounts.Backend)
	}
	if cfg.Accounts.Backend == "postgres" && cfg.Accounts.PostgresDSN == "" {
		return fmt.Errorf("config: accounts.postgres_dsn is required when accounts.backend is postgres")
	}
	return nil
}
