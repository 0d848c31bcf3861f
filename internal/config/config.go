package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/pricing"
)

type Config struct {
	App struct {
		Env      string `validate:"oneof=dev prod test"`
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		Token       string `validate:"required"`
		PollTimeout int    `mapstructure:"poll_timeout" validate:"gte=0,lte=600"`
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string `validate:"required"`
	} `mapstructure:"http"`

	Postgres struct {
		DSN       string        `validate:"required"`
		MaxConns  int32         `mapstructure:"max_conns" validate:"gte=0"`
		TxTimeout time.Duration `mapstructure:"tx_timeout" validate:"gte=0"`
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	// Pricing overrides the built-in material table when non-empty.
	Pricing struct {
		Categories []PricingCategory `validate:"dive"`
	} `mapstructure:"pricing"`
}

type PricingCategory struct {
	Name      string            `validate:"required"`
	Materials []PricingMaterial `validate:"required,min=1,dive"`
}

type PricingMaterial struct {
	Name   string `validate:"required"`
	Points int64  `validate:"gt=0"`
	Type   string `validate:"oneof=per_kg per_unit"`
}

// Load reads path, then .env, then APP_* variables (APP_POSTGRES_DSN
// overrides postgres.dsn).
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "America/Sao_Paulo")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.tx_timeout", "5s")
	v.SetDefault("metrics.enabled", true)
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid fields: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: app.timezone: %w", err)
	}
	if len(c.Pricing.Categories) > 0 {
		if _, err := pricing.NewTable(c.PricingSpecs()); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.App.Timezone)
}

// PricingSpecs returns the configured table, or the built-in one.
func (c Config) PricingSpecs() []pricing.CategorySpec {
	if len(c.Pricing.Categories) == 0 {
		return pricing.DefaultCategories()
	}
	out := make([]pricing.CategorySpec, 0, len(c.Pricing.Categories))
	for _, cat := range c.Pricing.Categories {
		spec := pricing.CategorySpec{Name: cat.Name}
		for _, m := range cat.Materials {
			spec.Materials = append(spec.Materials, pricing.MaterialSpec{
				Name:   m.Name,
				Points: m.Points,
				Type:   pricing.Unit(m.Type),
			})
		}
		out = append(out, spec)
	}
	return out
}
