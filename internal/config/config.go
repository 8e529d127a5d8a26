package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hamed0406/keepalive/internal/domain"
	"github.com/hamed0406/keepalive/internal/notify"
	"github.com/hamed0406/keepalive/internal/probe"
)

// ErrInvalid marks a configuration that must abort the run before probing.
var ErrInvalid = errors.New("invalid configuration")

const EnvPrefix = "KEEPALIVE"

type HTTPConfig struct {
	Addr           string   // status API bind address, only used with --serve
	AdminKeys      []string // may trigger runs
	PublicKeys     []string // may read status
	AllowedOrigins []string // empty means any origin
	PublicRPM      int
	PublicBurst    int
	AdminRPM       int
	AdminBurst     int
}

type Config struct {
	Mode      probe.AddressMode
	APIBase   string
	UserAgent string

	LogFile       string // keep-alive run log
	LogDir        string // diagnostic log directory
	RetentionDays int

	DelayMin int // minutes, inclusive
	DelayMax int // minutes, inclusive
	Timeout  time.Duration

	Targets []domain.Target

	SlackWebhook string
	SNS          notify.SNSConfig

	HTTP     HTTPConfig
	Schedule string
}

func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

type targetConfig struct {
	ID       string `mapstructure:"id"`
	Token    string `mapstructure:"token"`
	TokenEnv string `mapstructure:"token_env"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(probe.ModeSpace))
	v.SetDefault("api_base", probe.DefaultAPIBase)
	v.SetDefault("user_agent", probe.DefaultUserAgent)
	v.SetDefault("default_token_env", "HF_TOKEN")
	v.SetDefault("log_file", "logs/keep_alive.log")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("retention_days", 30)
	v.SetDefault("delay_min", 0)
	v.SetDefault("delay_max", 5)
	v.SetDefault("timeout_seconds", 10)
	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("http.public_rpm", 120)
	v.SetDefault("http.public_burst", 60)
	v.SetDefault("http.admin_rpm", 30)
	v.SetDefault("http.admin_burst", 10)
}

// Load reads .env (when present), the optional config file at path and
// KEEPALIVE_* environment variables, in increasing precedence. An empty path
// looks for keepalive.{yaml,json,toml} in the working directory.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("%w: .env: %v", ErrInvalid, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
		}
	} else {
		v.SetConfigName("keepalive")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	mode, err := probe.ParseMode(v.GetString("mode"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg := Config{
		Mode:          mode,
		APIBase:       v.GetString("api_base"),
		UserAgent:     v.GetString("user_agent"),
		LogFile:       v.GetString("log_file"),
		LogDir:        v.GetString("log_dir"),
		RetentionDays: v.GetInt("retention_days"),
		DelayMin:      v.GetInt("delay_min"),
		DelayMax:      v.GetInt("delay_max"),
		Timeout:       time.Duration(v.GetInt("timeout_seconds")) * time.Second,
		SlackWebhook:  v.GetString("slack_webhook"),
		SNS: notify.SNSConfig{
			Region:    v.GetString("sns.region"),
			TopicArn:  v.GetString("sns.topic_arn"),
			AccessKey: v.GetString("sns.access_key"),
			SecretKey: v.GetString("sns.secret_key"),
		},
		HTTP: HTTPConfig{
			Addr:           v.GetString("http.addr"),
			AdminKeys:      splitList(v.GetStringSlice("http.admin_keys")),
			PublicKeys:     splitList(v.GetStringSlice("http.public_keys")),
			AllowedOrigins: splitList(v.GetStringSlice("http.allowed_origins")),
			PublicRPM:      v.GetInt("http.public_rpm"),
			PublicBurst:    v.GetInt("http.public_burst"),
			AdminRPM:       v.GetInt("http.admin_rpm"),
			AdminBurst:     v.GetInt("http.admin_burst"),
		},
		Schedule: v.GetString("schedule"),
	}

	var raw []targetConfig
	if list := os.Getenv(EnvPrefix + "_TARGETS"); list != "" {
		raw = parseTargetList(list)
	} else if err := v.UnmarshalKey("targets", &raw); err != nil {
		return Config{}, fmt.Errorf("%w: targets: %v", ErrInvalid, err)
	}

	defaultEnv := ""
	if mode == probe.ModeSpace {
		defaultEnv = v.GetString("default_token_env")
	}
	for _, t := range raw {
		cfg.Targets = append(cfg.Targets, t.resolve(defaultEnv))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolve picks the credential: a literal token wins, then the named env
// variable, then the mode's default variable. An empty result means the
// target is public.
func (t targetConfig) resolve(defaultEnv string) domain.Target {
	out := domain.Target{ID: strings.TrimSpace(t.ID), Token: t.Token}
	if out.Token == "" {
		env := t.TokenEnv
		if env == "" {
			env = defaultEnv
		}
		if env != "" {
			out.Token = os.Getenv(env)
		}
	}
	return out
}

// parseTargetList reads "org/a,org/b=OTHER_TOKEN".
func parseTargetList(s string) []targetConfig {
	var out []targetConfig
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, env, _ := strings.Cut(item, "=")
		out = append(out, targetConfig{ID: id, TokenEnv: env})
	}
	return out
}

func (c Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: no targets configured", ErrInvalid)
	}
	for i, t := range c.Targets {
		if t.ID == "" {
			return fmt.Errorf("%w: target %d has an empty id", ErrInvalid, i)
		}
		if c.Mode == probe.ModeURL {
			u, err := url.Parse(t.ID)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("%w: target %q is not an http(s) address", ErrInvalid, t.ID)
			}
		}
	}
	if c.DelayMin < 0 || c.DelayMax < c.DelayMin {
		return fmt.Errorf("%w: delay range [%d, %d]", ErrInvalid, c.DelayMin, c.DelayMax)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("%w: retention_days must be positive", ErrInvalid)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout_seconds must be positive", ErrInvalid)
	}
	if c.LogFile == "" {
		return fmt.Errorf("%w: log_file is empty", ErrInvalid)
	}
	return nil
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}
