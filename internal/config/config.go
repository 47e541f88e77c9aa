// Package config holds the settings ssoguard runs with. Values come from
// flags, environment variables or a YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SSO is the realm tokens are verified against.
type SSO struct {
	URL         string `name:"sso-url" env:"SSO_URL" help:"Base URL of the SSO server, ending in a slash."`
	Realm       string `name:"sso-realm" env:"SSO_REALM" help:"SSO realm tokens are issued by."`
	KeyBasePath string `name:"key-base-path" env:"ACCESS_TOKEN_PUBLIC_KEY_BASEPATH" type:"path" help:"Directory holding the realm's public keys, one per file."`
}

func (s SSO) Validate() error {
	var errs []error
	if strings.TrimSpace(s.URL) == "" {
		errs = append(errs, errors.New("missing sso url"))
	} else if !strings.HasSuffix(s.URL, "/") {
		errs = append(errs, fmt.Errorf("sso url '%s' must end with '/'", s.URL))
	}
	if strings.TrimSpace(s.Realm) == "" {
		errs = append(errs, errors.New("missing sso realm"))
	}
	if strings.TrimSpace(s.KeyBasePath) == "" {
		errs = append(errs, errors.New("missing key base path"))
	}
	return errors.Join(errs...)
}

// Server configures the HTTP service.
type Server struct {
	Port         int           `name:"port" env:"PORT" default:"8080" help:"Port to listen on."`
	ReadTimeout  time.Duration `name:"read-timeout" env:"READ_TIMEOUT" default:"5s" help:"HTTP read timeout."`
	WriteTimeout time.Duration `name:"write-timeout" env:"WRITE_TIMEOUT" default:"10s" help:"HTTP write timeout."`
	WatchKeys    bool          `name:"watch-keys" env:"WATCH_KEYS" default:"true" negatable:"" help:"Reload keys when the key directory changes."`
	AuditDBPath  string        `name:"audit-db" env:"AUDIT_DB_PATH" help:"SQLite database for the audit log. Auditing is off when empty."`
	AuditMaxAge  time.Duration `name:"audit-max-age" env:"AUDIT_MAX_AGE" default:"720h" help:"Audit rows older than this are pruned."`
	AdminUser    string        `name:"admin-user" env:"ADMIN_USER" default:"admin" help:"User name for the admin endpoints."`
	AdminHash    string        `name:"admin-password-hash" env:"ADMIN_PASSWORD_HASH" help:"bcrypt hash of the admin password. Admin endpoints are off when empty."`
}

func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

func (s Server) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if s.AuditEnabled() && s.AuditMaxAge <= 0 {
		return errors.New("audit max age must be positive")
	}
	return nil
}

func (s Server) AuditEnabled() bool {
	return strings.TrimSpace(s.AuditDBPath) != ""
}
