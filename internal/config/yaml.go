package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// YAML is a kong configuration loader. Keys are flag names, either flat
// ("sso-url: ...") or nested by dash-separated segment ("sso: {url: ...}").
//
//	kong.Parse(&cli, kong.Configuration(config.YAML, "/etc/ssoguard.yaml"))
func YAML(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode yaml config: %w", err)
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		return Lookup(values, flag.Name)
	}
	return f, nil
}

// Lookup finds name in values, first as a flat key and then as a path of
// nested keys split on "-". It returns nil when name is absent.
func Lookup(values map[string]any, name string) (any, error) {
	v, ok := values[name]
	if !ok {
		v, ok = values[strings.ReplaceAll(name, "-", "_")]
	}
	if !ok {
		v, ok = lookupNested(values, strings.Split(name, "-"))
	}
	if !ok {
		return nil, nil
	}
	if _, isSection := v.(map[string]any); isSection {
		return nil, fmt.Errorf("config key '%s' is a section, not a value", name)
	}
	return v, nil
}

func lookupNested(values map[string]any, parts []string) (any, bool) {
	var current any = values
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}
