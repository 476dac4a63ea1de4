package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"hamsterjira/internal/timeutil"
	"hamsterjira/ticket"
)

const (
	KeyJiraServerURL  = "jira-server-url"
	KeyJiraUsername   = "jira-username"
	KeyJiraAPIToken   = "jira-api-token"
	KeyMaxDaysPast    = "max-days-past"
	KeyFirstDay       = "first-day"
	KeyDayStartsAt    = "day-starts-at"
	KeyProjects       = "projects"
	KeyVerbose        = "verbose"
	KeyDryRun         = "dry-run"
	KeyEnvFile        = "env-file"
	KeyHamsterDB      = "hamster-db"
	KeyLogLevel       = "log-level"
	KeyTimeout        = "timeout"
	KeyDedupeComments = "dedupe-comments"
	KeyRetries        = "retries"
	KeyReportOutput   = "report-output"
)

const (
	DefaultEnvFile     = ".env"
	DefaultMaxDaysPast = 14
	DefaultTimeout     = 30 * time.Second
	DefaultRetries     = 3
)

var (
	// ErrMissingCredentials is returned when the Jira URL, user name or token is absent.
	ErrMissingCredentials = errors.New("missing jira credentials")
	// ErrInvalid wraps every other configuration problem.
	ErrInvalid = errors.New("invalid configuration")
)

// envBindings maps config keys to the environment variables that may provide them.
var envBindings = map[string]string{
	KeyJiraServerURL: "JIRA_SERVER_URL",
	KeyJiraUsername:  "JIRA_USERNAME",
	KeyJiraAPIToken:  "JIRA_API_TOKEN",
}

var credentialFields = map[string]string{
	"JiraServerURL": "JIRA_SERVER_URL / --jira-server-url",
	"Username":      "JIRA_USERNAME / --jira-username",
	"APIToken":      "JIRA_API_TOKEN / --jira-api-token",
}

type Config struct {
	JiraServerURL  string        `mapstructure:"jira-server-url" validate:"required,url"`
	Username       string        `mapstructure:"jira-username" validate:"required"`
	APIToken       string        `mapstructure:"jira-api-token" validate:"required"`
	MaxDaysPast    int           `mapstructure:"max-days-past" validate:"gte=0"`
	FirstDayRaw    string        `mapstructure:"first-day"`
	DayStartsAt    string        `mapstructure:"day-starts-at"`
	ProjectsRaw    string        `mapstructure:"projects"`
	Verbose        bool          `mapstructure:"verbose"`
	DryRun         bool          `mapstructure:"dry-run"`
	EnvFile        string        `mapstructure:"env-file"`
	HamsterDB      string        `mapstructure:"hamster-db"`
	LogLevel       string        `mapstructure:"log-level" validate:"omitempty,oneof=debug info warn error"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gte=0"`
	DedupeComments bool          `mapstructure:"dedupe-comments"`
	Retries        uint64        `mapstructure:"retries" validate:"lte=10"`
	ReportOutput   string        `mapstructure:"report-output"`

	// Resolved from the raw values above during validation.
	DayStart timeutil.DayStart `mapstructure:"-"`
	FirstDay timeutil.Day      `mapstructure:"-"`
	Projects []string          `mapstructure:"-"`
}

// SetDefaults sets default values if not provided
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyMaxDaysPast, DefaultMaxDaysPast)
	v.SetDefault(KeyDayStartsAt, timeutil.DefaultDayStart.String())
	v.SetDefault(KeyEnvFile, DefaultEnvFile)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyRetries, DefaultRetries)
}

// BindEnv binds the Jira environment variables. A non-empty variable wins
// over the matching --jira-* flag.
func BindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
		if value, ok := lookupEnv(env); ok {
			v.Set(key, value)
		}
	}
	return nil
}

// LoadEnvFile applies the Jira variables of a dotenv file. They win over flags
// but not over the process environment. A missing file is ignored unless
// required is set.
func LoadEnvFile(v *viper.Viper, path string, required bool) (bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return false, nil
		}
		return false, fmt.Errorf("%w: env file %s: %w", ErrInvalid, path, err)
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return false, fmt.Errorf("%w: read env file %s: %w", ErrInvalid, path, err)
	}

	for key, env := range envBindings {
		if _, ok := lookupEnv(env); ok {
			continue
		}
		value := strings.TrimSpace(file.GetString(strings.ToLower(env)))
		if value != "" {
			v.Set(key, value)
		}
	}
	return true, nil
}

func lookupEnv(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

// LoadAndValidate loads config from Viper and validates it
func LoadAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: error unmarshaling config: %w", ErrInvalid, err)
	}
	cfg.JiraServerURL = strings.TrimRight(strings.TrimSpace(cfg.JiraServerURL), "/")
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := validateStruct(cfg); err != nil {
		return nil, err
	}

	dayStart, err := timeutil.ParseDayStart(cfg.DayStartsAt)
	if err != nil {
		return nil, fmt.Errorf("%w: --day-starts-at: %w", ErrInvalid, err)
	}
	cfg.DayStart = dayStart

	if strings.TrimSpace(cfg.FirstDayRaw) != "" {
		first, err := timeutil.ParseDay(cfg.FirstDayRaw)
		if err != nil {
			return nil, fmt.Errorf("%w: --first-day: %w", ErrInvalid, err)
		}
		cfg.FirstDay = first
	}

	cfg.Projects = ticket.ParseProjectList(cfg.ProjectsRaw)

	if err := validateReportOutput(cfg.ReportOutput); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateStruct(cfg Config) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: validation failed: %w", ErrInvalid, err)
	}

	var missing []string
	for _, fieldErr := range fieldErrs {
		if source, ok := credentialFields[fieldErr.StructField()]; ok && fieldErr.Tag() == "required" {
			missing = append(missing, source)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf(
			"%w: set %s (environment, .env file or flags)",
			ErrMissingCredentials,
			strings.Join(missing, ", "),
		)
	}
	return fmt.Errorf("%w: validation failed: %w", ErrInvalid, err)
}

func validateReportOutput(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".xlsx") {
		return nil
	}
	return fmt.Errorf("%w: --report-output %q must end in .csv or .xlsx", ErrInvalid, path)
}
