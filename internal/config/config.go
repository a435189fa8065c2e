package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yml
var defaultYAML []byte

// TitleRules decide whether a title belongs to the role profile. A title
// matches if it contains an exact role, or a domain phrase plus a domain
// seniority word, or a base role plus a base seniority word.
type TitleRules struct {
	ExactRoles      []string `yaml:"exact_roles" json:"exact_roles"`
	DomainPhrases   []string `yaml:"domain_phrases" json:"domain_phrases"`
	DomainSeniority []string `yaml:"domain_seniority" json:"domain_seniority"`
	BaseRoles       []string `yaml:"base_roles" json:"base_roles"`
	BaseSeniority   []string `yaml:"base_seniority" json:"base_seniority"`
}

// LocationRules accept an exact city phrase, or a remote word together with
// the city or an eligible region.
type LocationRules struct {
	CityPhrases   []string `yaml:"city_phrases" json:"city_phrases"`
	RemoteWords   []string `yaml:"remote_words" json:"remote_words"`
	RemoteCity    []string `yaml:"remote_city" json:"remote_city"`
	RemoteRegions []string `yaml:"remote_regions" json:"remote_regions"`
}

type Rules struct {
	Title    TitleRules    `yaml:"title" json:"title"`
	Location LocationRules `yaml:"location" json:"location"`
}

type Company struct {
	Slug string `yaml:"slug" json:"slug"`
	Name string `yaml:"name" json:"name"`
}

type ATSSource struct {
	Enabled   bool      `yaml:"enabled" json:"enabled"`
	Companies []Company `yaml:"companies" json:"companies"`
}

// HTMLBoard describes one careers page scraped with CSS selectors.
type HTMLBoard struct {
	Name             string `yaml:"name" json:"name"`
	URL              string `yaml:"url" json:"url"`
	Company          string `yaml:"company" json:"company"`
	ItemSelector     string `yaml:"item_selector" json:"item_selector"`
	TitleSelector    string `yaml:"title_selector" json:"title_selector"`
	LinkSelector     string `yaml:"link_selector" json:"link_selector"`
	LocationSelector string `yaml:"location_selector" json:"location_selector"`
}

type Email struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	IMAPHost         string   `yaml:"imap_host" json:"imap_host"`
	IMAPPort         int      `yaml:"imap_port" json:"imap_port"`
	Username         string   `yaml:"username" json:"username"`
	Mailbox          string   `yaml:"mailbox" json:"mailbox"`
	SearchSubjectAny []string `yaml:"search_subject_any" json:"search_subject_any"`
	MaxMessages      int      `yaml:"max_messages" json:"max_messages"`

	// AppPassword is never read from yaml; see secrets.IMAPPassword.
	AppPassword string `yaml:"-" json:"-"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Schedule struct {
		Cron     string `yaml:"cron" json:"cron"`
		Timezone string `yaml:"timezone" json:"timezone"`
	} `yaml:"schedule" json:"schedule"`

	State struct {
		Backend string `yaml:"backend" json:"backend"` // json | sqlite
		Path    string `yaml:"path" json:"path"`
	} `yaml:"state" json:"state"`

	Output struct {
		SummaryPath string `yaml:"summary_path" json:"summary_path"`
	} `yaml:"output" json:"output"`

	HTTP struct {
		RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
		Burst             int     `yaml:"burst" json:"burst"`
		TimeoutSeconds    int     `yaml:"timeout_seconds" json:"timeout_seconds"`
		SourceTimeout     int     `yaml:"source_timeout_seconds" json:"source_timeout_seconds"`
	} `yaml:"http" json:"http"`

	Sources struct {
		Greenhouse      ATSSource   `yaml:"greenhouse" json:"greenhouse"`
		Lever           ATSSource   `yaml:"lever" json:"lever"`
		SmartRecruiters ATSSource   `yaml:"smartrecruiters" json:"smartrecruiters"`
		Workday         ATSSource   `yaml:"workday" json:"workday"`
		HTMLBoards      []HTMLBoard `yaml:"html_boards" json:"html_boards"`
	} `yaml:"sources" json:"sources"`

	Email Email `yaml:"email" json:"email"`

	Rules Rules `yaml:"rules" json:"rules"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("config: embedded default is invalid: %v", err))
	}
	return cfg
}

// Parse decodes yaml and fills defaults for anything left blank.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// Load reads the yaml at path, then applies .env and environment overrides.
// JOBWATCH_DATA_DIR wins over app.data_dir.
func Load(path string) (Config, error) {
	// a missing .env is the normal case
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	// a relative data_dir is relative to the config file, not the cwd
	if !filepath.IsAbs(cfg.App.DataDir) {
		cfg.App.DataDir = filepath.Join(filepath.Dir(path), cfg.App.DataDir)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 38471
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = "."
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "UTC"
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = "json"
	}
	if cfg.State.Path == "" {
		if cfg.State.Backend == "sqlite" {
			cfg.State.Path = "jobwatch.db"
		} else {
			cfg.State.Path = "state.json"
		}
	}
	if cfg.HTTP.RequestsPerSecond <= 0 {
		cfg.HTTP.RequestsPerSecond = 1
	}
	if cfg.HTTP.Burst <= 0 {
		cfg.HTTP.Burst = 2
	}
	if cfg.HTTP.TimeoutSeconds <= 0 {
		cfg.HTTP.TimeoutSeconds = 20
	}
	if cfg.HTTP.SourceTimeout <= 0 {
		cfg.HTTP.SourceTimeout = 300
	}
	if cfg.Email.Mailbox == "" {
		cfg.Email.Mailbox = "INBOX"
	}
	if cfg.Email.IMAPPort == 0 {
		cfg.Email.IMAPPort = 993
	}
	if cfg.Email.MaxMessages <= 0 {
		cfg.Email.MaxMessages = 200
	}
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("JOBWATCH_DATA_DIR")); v != "" {
		cfg.App.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBWATCH_STATE_PATH")); v != "" {
		cfg.State.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBWATCH_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid JOBWATCH_PORT %q: %w", v, err)
		}
		cfg.App.Port = port
	}
	if v := os.Getenv("JOBWATCH_IMAP_PASSWORD"); v != "" {
		cfg.Email.AppPassword = v
	}
	return nil
}
