package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"git.sr.ht/~jakintosh/ssoguard/internal/config"
)

type testCLI struct {
	Config kong.ConfigFlag `help:"Config file."`
	SSO    config.SSO      `embed:""`
	Server config.Server   `embed:""`
}

func parse(t *testing.T, args ...string) *testCLI {
	t.Helper()
	var cli testCLI
	parser, err := kong.New(&cli, kong.Configuration(config.YAML), kong.Exit(func(int) { t.Fatal("parser exited") }))
	if err != nil {
		t.Fatalf("failed to build parser: %v", err)
	}
	if _, err := parser.Parse(args); err != nil {
		t.Fatalf("failed to parse %v: %v", args, err)
	}
	return &cli
}

func TestSSO_Validate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		sso     config.SSO
		wantErr string
	}{
		{"valid", config.SSO{URL: "https://sso/auth/", Realm: "org", KeyBasePath: "/keys"}, ""},
		{"missing url", config.SSO{Realm: "org", KeyBasePath: "/keys"}, "missing sso url"},
		{"no trailing slash", config.SSO{URL: "https://sso/auth", Realm: "org", KeyBasePath: "/keys"}, "must end with '/'"},
		{"missing realm", config.SSO{URL: "https://sso/auth/", KeyBasePath: "/keys"}, "missing sso realm"},
		{"missing keys", config.SSO{URL: "https://sso/auth/", Realm: "org"}, "missing key base path"},
		{"blank realm", config.SSO{URL: "https://sso/auth/", Realm: "  ", KeyBasePath: "/keys"}, "missing sso realm"},
	}

	for _, tc := range cases {
		err := tc.sso.Validate()
		if tc.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error: %v", tc.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: err = %v, want containing %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestSSO_ValidateReportsAll(t *testing.T) {
	t.Parallel()
	err := config.SSO{}.Validate()
	if err == nil {
		t.Fatal("expected error")
	}

	// every missing field is reported at once
	for _, want := range []string{"sso url", "sso realm", "key base path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestServer_Validate(t *testing.T) {
	t.Parallel()
	valid := config.Server{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if valid.Addr() != ":8080" {
		t.Errorf("Addr = %s, want :8080", valid.Addr())
	}

	badPort := valid
	badPort.Port = 70000
	if err := badPort.Validate(); err == nil {
		t.Error("expected port error")
	}

	badTimeout := valid
	badTimeout.WriteTimeout = 0
	if err := badTimeout.Validate(); err == nil {
		t.Error("expected timeout error")
	}
}

func TestServer_AuditEnabled(t *testing.T) {
	t.Parallel()
	if (config.Server{}).AuditEnabled() {
		t.Error("audit should be off without a database path")
	}
	if !(config.Server{AuditDBPath: "audit.db"}).AuditEnabled() {
		t.Error("audit should be on with a database path")
	}
}

func TestParse_Flags(t *testing.T) {
	t.Parallel()
	cli := parse(t,
		"--sso-url", "https://sso.example.com/auth/",
		"--sso-realm", "org",
		"--key-base-path", "/keys",
		"--port", "9000",
		"--no-watch-keys",
	)

	if cli.SSO.URL != "https://sso.example.com/auth/" {
		t.Errorf("URL = %s", cli.SSO.URL)
	}
	if cli.SSO.Realm != "org" {
		t.Errorf("Realm = %s", cli.SSO.Realm)
	}
	if cli.SSO.KeyBasePath != "/keys" {
		t.Errorf("KeyBasePath = %s", cli.SSO.KeyBasePath)
	}
	if cli.Server.Port != 9000 {
		t.Errorf("Port = %d", cli.Server.Port)
	}
	if cli.Server.WatchKeys {
		t.Error("WatchKeys should be off")
	}
	if cli.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %s, want default 5s", cli.Server.ReadTimeout)
	}
}

func TestParse_Env(t *testing.T) {
	t.Setenv("SSO_URL", "https://env.example.com/")
	t.Setenv("SSO_REALM", "env-realm")
	t.Setenv("ACCESS_TOKEN_PUBLIC_KEY_BASEPATH", "/env/keys")

	cli := parse(t)

	if cli.SSO.URL != "https://env.example.com/" {
		t.Errorf("URL = %s", cli.SSO.URL)
	}
	if cli.SSO.Realm != "env-realm" {
		t.Errorf("Realm = %s", cli.SSO.Realm)
	}
	if cli.SSO.KeyBasePath != "/env/keys" {
		t.Errorf("KeyBasePath = %s", cli.SSO.KeyBasePath)
	}
}

func TestParse_ConfigFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ssoguard.yaml")
	content := `
sso:
  url: https://file.example.com/
  realm: file-realm
key-base-path: /file/keys
port: 9100
read-timeout: 2s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// flags override the file
	cli := parse(t, "--config", path, "--sso-realm", "flag-realm")

	if cli.SSO.URL != "https://file.example.com/" {
		t.Errorf("URL = %s", cli.SSO.URL)
	}
	if cli.SSO.Realm != "flag-realm" {
		t.Errorf("Realm = %s, want flag-realm", cli.SSO.Realm)
	}
	if cli.SSO.KeyBasePath != "/file/keys" {
		t.Errorf("KeyBasePath = %s", cli.SSO.KeyBasePath)
	}
	if cli.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cli.Server.Port)
	}
	if cli.Server.ReadTimeout != 2*time.Second {
		t.Errorf("ReadTimeout = %s, want 2s", cli.Server.ReadTimeout)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	values := map[string]any{
		"port":         8080,
		"audit_db":     "audit.db",
		"sso":          map[string]any{"url": "https://sso/"},
		"read-timeout": "5s",
	}

	cases := []struct {
		name string
		want any
	}{
		{"port", 8080},
		{"audit-db", "audit.db"},
		{"sso-url", "https://sso/"},
		{"read-timeout", "5s"},
		{"sso-realm", nil},
		{"missing", nil},
	}

	for _, tc := range cases {
		got, err := config.Lookup(values, tc.name)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}

	// a section is not a value
	if _, err := config.Lookup(values, "sso"); err == nil {
		t.Error("expected error looking up a section")
	}
}
