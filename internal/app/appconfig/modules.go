package appconfig

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/clovid/prisma-sub000/internal/pkg/validate"
)

const (
	BackendRemote       = "remote"
	BackendVQuest       = "vquest"
	BackendVQuestOnline = "vquest-online"
	BackendVQuestHybrid = "vquest-hybrid"
	BackendCampus       = "campus"

	CollectorStructure = "structure"
	CollectorTemplate  = "template"

	AuthNone    = "none"
	AuthToken   = "token"
	AuthOAuth   = "oauth"
	AuthSession = "session"
)

var ErrUnknownModule = errors.New("unknown module")

type ModuleRegistry struct {
	Modules []*ModuleConfig `mapstructure:"modules" validate:"dive"`
}

func (r *ModuleRegistry) Get(name string) (*ModuleConfig, error) {
	for _, m := range r.Modules {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, errors.Wrap(ErrUnknownModule, name)
}

type ModuleConfig struct {
	Name    string     `mapstructure:"name" validate:"required"`
	Title   string     `mapstructure:"title"`
	BaseURL string     `mapstructure:"base_url" validate:"required,url"`
	Auth    AuthConfig `mapstructure:"auth"`

	// Backend selects how answers are aggregated: by the module itself (remote) or by one
	// of the in-process aggregators.
	Backend string `mapstructure:"backend" validate:"required,oneof=remote vquest vquest-online vquest-hybrid campus"`

	TaskRoute    string `mapstructure:"task_route" validate:"omitempty,oneof=tests cases tasks"`
	ImageRoute   string `mapstructure:"image_route"`
	OverlayRoute string `mapstructure:"overlay_route"`

	// CacheTTL applies to static upstream resources. Zero keeps them forever.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	Parameters ParameterConfig `mapstructure:"parameters"`

	// NullSentinel is the value the module uses for "no answer" leaves in grouped distributions.
	NullSentinel   string `mapstructure:"null_sentinel"`
	MarkerSentinel *int   `mapstructure:"marker_sentinel"`

	TextReplacements []TextReplacement `mapstructure:"text_replacements" validate:"dive"`

	Tabs TabsConfig `mapstructure:"tabs"`

	// DatasetProvider names the module hybrid aggregators fetch answers from.
	DatasetProvider string      `mapstructure:"dataset_provider" validate:"required_if=Backend vquest-hybrid"`
	IDMap           IDMapConfig `mapstructure:"id_map"`
}

type AuthConfig struct {
	Type string `mapstructure:"type" validate:"omitempty,oneof=none token oauth session"`

	Token string `mapstructure:"token" validate:"required_if=Type token"`

	TokenURL     string `mapstructure:"token_url" validate:"required_if=Type oauth"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Scope        string `mapstructure:"scope"`

	LoginPath      string        `mapstructure:"login_path" validate:"required_if=Type session"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	SessionPath    string        `mapstructure:"session_path"`
	SessionHeader  string        `mapstructure:"session_header"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
}

type ParameterConfig struct {
	Cohort           string `mapstructure:"cohort"`
	Timespans        string `mapstructure:"timespans"`
	TimestampDivisor int64  `mapstructure:"timestamp_divisor" validate:"gte=0"`
}

type TextReplacement struct {
	Search  string `mapstructure:"search" validate:"required"`
	Replace string `mapstructure:"replace"`
}

type TabsConfig struct {
	Collector string        `mapstructure:"collector" validate:"omitempty,oneof=structure template"`
	Config    string        `mapstructure:"config"`
	Template  []TemplateTab `mapstructure:"template" validate:"dive"`
}

type TemplateTab struct {
	Name     string `mapstructure:"name" validate:"required"`
	Title    string `mapstructure:"title"`
	Template string `mapstructure:"template"`
	// When is an expr condition over `forms`, the sub-forms available upstream.
	When string `mapstructure:"when"`
}

type IDMapConfig struct {
	Subquestions map[string]int `mapstructure:"subquestions"`
}

func (m *ModuleConfig) applyDefaults() {
	if m.Title == "" {
		m.Title = m.Name
	}
	m.BaseURL = strings.TrimRight(m.BaseURL, "/")
	if m.Auth.Type == "" {
		m.Auth.Type = AuthNone
	}
	if m.Auth.SessionPath == "" {
		m.Auth.SessionPath = "session_id"
	}
	if m.Auth.SessionHeader == "" {
		m.Auth.SessionHeader = "X-Session-ID"
	}
	if m.Auth.SessionTimeout == 0 {
		m.Auth.SessionTimeout = 10 * time.Minute
	}
	if m.TaskRoute == "" {
		m.TaskRoute = "tests"
	}
	if m.ImageRoute == "" {
		m.ImageRoute = "images"
	}
	if m.OverlayRoute == "" {
		m.OverlayRoute = "overlays"
	}
	if m.Parameters.Cohort == "" {
		m.Parameters.Cohort = "cads_ids"
	}
	if m.Parameters.Timespans == "" {
		m.Parameters.Timespans = "timespans"
	}
	if m.Parameters.TimestampDivisor == 0 {
		m.Parameters.TimestampDivisor = 1000
	}
	if m.NullSentinel == "" {
		m.NullSentinel = "null"
	}
	if m.MarkerSentinel == nil {
		sentinel := -1
		m.MarkerSentinel = &sentinel
	}
	if m.Tabs.Collector == "" {
		if len(m.Tabs.Template) > 0 {
			m.Tabs.Collector = CollectorTemplate
		} else {
			m.Tabs.Collector = CollectorStructure
		}
	}
}

// LoadModules reads the module registry file and validates every module entry.
func LoadModules(path string) (*ModuleRegistry, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read module registry %s", path)
	}

	var registry ModuleRegistry
	if err := v.Unmarshal(&registry); err != nil {
		return nil, errors.Wrap(err, "failed to decode module registry")
	}

	return &registry, registry.prepare()
}

func (r *ModuleRegistry) prepare() error {
	seen := make(map[string]struct{}, len(r.Modules))
	for _, m := range r.Modules {
		m.applyDefaults()
		if _, ok := seen[m.Name]; ok {
			return errors.Errorf("module %q is declared twice", m.Name)
		}
		seen[m.Name] = struct{}{}
	}

	if err := validate.Default.Struct(r); err != nil {
		return errors.Wrap(err, "invalid module registry")
	}

	for _, m := range r.Modules {
		if m.Backend != BackendVQuestHybrid {
			continue
		}
		if _, err := r.Get(m.DatasetProvider); err != nil {
			return errors.Wrapf(err, "module %q: dataset provider", m.Name)
		}
	}
	return nil
}
