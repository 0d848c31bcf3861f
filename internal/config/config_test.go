package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/pricing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimal = `
telegram:
  token: "t"
postgres:
  dsn: "postgres://localhost/eco"
`

func TestLoad_ExampleFile(t *testing.T) {
	c, err := Load("../../config/example.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.App.Env != "dev" || c.Postgres.TxTimeout != 5*time.Second || !c.Metrics.Enabled {
		t.Fatalf("unexpected config %+v", c)
	}
	tbl, err := pricing.NewTable(c.PricingSpecs())
	if err != nil {
		t.Fatalf("pricing from example: %v", err)
	}
	if tbl.Len() != pricing.Default().Len() {
		t.Fatalf("example pricing has %d materials, want %d", tbl.Len(), pricing.Default().Len())
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("APP_POSTGRES_DSN", "postgres://env/eco")
	t.Setenv("APP_HTTP_ADDR", ":9999")

	c, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Postgres.DSN != "postgres://env/eco" || c.HTTP.Addr != ":9999" {
		t.Fatalf("env not applied: %+v", c)
	}
	if c.App.Env != "prod" || c.Telegram.PollTimeout != 30 || c.Postgres.MaxConns != 10 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if len(c.PricingSpecs()) != len(pricing.DefaultCategories()) {
		t.Fatal("empty pricing section did not fall back to the built-in table")
	}
	loc, err := c.Location()
	if err != nil || loc.String() != "America/Sao_Paulo" {
		t.Fatalf("Location = %v, %v", loc, err)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"missing token": {
			body: "postgres:\n  dsn: \"x\"\n",
			want: "Token",
		},
		"bad env": {
			body: minimal + "app:\n  env: staging\n",
			want: "Env",
		},
		"bad timezone": {
			body: minimal + "app:\n  timezone: Mars/Olympus\n",
			want: "timezone",
		},
		"bad unit": {
			body: minimal + `
pricing:
  categories:
    - name: A
      materials:
        - { name: X, points: 1, type: per_liter }
`,
			want: "Type",
		},
		"zero points": {
			body: minimal + `
pricing:
  categories:
    - name: A
      materials:
        - { name: X, points: 0, type: per_kg }
`,
			want: "Points",
		},
		"duplicate material": {
			body: minimal + `
pricing:
  categories:
    - name: A
      materials:
        - { name: X, points: 1, type: per_kg }
    - name: B
      materials:
        - { name: X, points: 2, type: per_unit }
`,
			want: "X",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_TELEGRAM_TOKEN", "")
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("Load succeeded")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}
