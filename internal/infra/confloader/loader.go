package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix prefixes server settings in the environment.
const DefaultEnvPrefix = "LICMESH_"

const envSeparator = "__"

// Loader layers a YAML file and prefixed environment variables over a
// struct that already holds the defaults.
type Loader struct {
	k        *koanf.Koanf
	prefix   string
	path     string
	optional bool
	sources  []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.prefix = prefix }
}

// WithConfigFile names a file that must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.path, l.optional = path, false }
}

// WithOptionalConfigFile names a file that is skipped when missing.
func WithOptionalConfigFile(path string) Option {
	return func(l *Loader) { l.path, l.optional = path, true }
}

// NewLoader returns a Loader with the given options applied.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{k: koanf.New("."), prefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load applies the file, then the environment, then decodes into target.
// Keys no source mentions leave target's field as it was.
func (l *Loader) Load(target any) error {
	if l.path != "" {
		_, err := os.Stat(l.path)
		switch {
		case err == nil:
			if err := l.LoadFile(l.path); err != nil {
				return err
			}
		case l.optional && errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("config file: %w", err)
		}
	}

	if err := l.k.Load(env.Provider(l.prefix, ".", l.envKey), nil); err != nil {
		return fmt.Errorf("load %s* environment: %w", l.prefix, err)
	}
	if l.envSet() {
		l.sources = append(l.sources, "env:"+l.prefix)
	}

	return l.Unmarshal(target)
}

// LoadFile merges a YAML file without touching the environment.
func (l *Loader) LoadFile(path string) error {
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	l.sources = append(l.sources, "file:"+path)
	return nil
}

// Unmarshal decodes everything merged so far using koanf tags.
func (l *Loader) Unmarshal(target any) error {
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Sources lists what was merged, in order, as "file:<path>" and
// "env:<prefix>".
func (l *Loader) Sources() []string {
	return append([]string(nil), l.sources...)
}

// envKey maps LICMESH_LEDGER__OPEN_MINT__ENABLED to ledger.open_mint.enabled.
func (l *Loader) envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, l.prefix))
	return strings.ReplaceAll(s, envSeparator, ".")
}

func (l *Loader) envSet() bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, l.prefix) {
			return true
		}
	}
	return false
}
