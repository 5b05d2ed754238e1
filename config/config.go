// Package config loads and validates cmdbridge settings.
//
// Settings are layered: Defaults, then a TOML or YAML file, then
// CMDBRIDGE_* environment variables, then a script's setup table applied
// with FromMap. Every layer is validated the same way.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cmdbridge/cmdbridge/bridge"
	"github.com/cmdbridge/cmdbridge/command"
	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CMDBRIDGE_"

// Settings is the complete cmdbridge configuration.
type Settings struct {
	// Threshold is the number of registrations between automatic
	// collections. Zero disables automatic collection.
	Threshold int `toml:"threshold" yaml:"threshold" json:"threshold" env:"THRESHOLD" validate:"gte=0" jsonschema:"description=Registrations between automatic collections (0 disables)"`

	// Prefix starts every identity.
	Prefix string `toml:"prefix" yaml:"prefix" json:"prefix" env:"PREFIX" validate:"required,typename" jsonschema:"description=Identity prefix; must start with an upper-case letter"`

	// Suffix ends every identity.
	Suffix string `toml:"suffix" yaml:"suffix" json:"suffix" env:"SUFFIX" validate:"omitempty,ident" jsonschema:"description=Identity suffix"`

	// Namespace is the namespace scripts register callables in by default.
	Namespace string `toml:"namespace" yaml:"namespace" json:"namespace" env:"NAMESPACE" validate:"required" jsonschema:"description=Default namespace for script callables"`

	// Separator joins the tokens of a command line.
	Separator string `toml:"separator" yaml:"separator" json:"separator" env:"SEPARATOR" validate:"required" jsonschema:"description=Token separator on command lines"`

	// ExtensionDir holds <command>.lua extension scripts. Empty disables
	// script extensions.
	ExtensionDir string `toml:"extension_dir" yaml:"extension_dir" json:"extension_dir,omitempty" env:"EXTENSION_DIR" jsonschema:"description=Directory of <command>.lua extension scripts"`

	// LuaGlobal is the name of the global table scripts see.
	LuaGlobal string `toml:"lua_global" yaml:"lua_global" json:"lua_global" env:"LUA_GLOBAL" validate:"required,ident" jsonschema:"description=Name of the global script table"`

	Log LogSettings `toml:"log" yaml:"log" json:"log" envPrefix:"LOG_"`
}

// LogSettings configures logging.
type LogSettings struct {
	Level  string `toml:"level" yaml:"level" json:"level" env:"LEVEL" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `toml:"format" yaml:"format" json:"format" env:"FORMAT" validate:"oneof=text json" jsonschema:"enum=text,enum=json"`
}

// Defaults returns the built-in settings.
func Defaults() *Settings {
	return &Settings{
		Threshold: bridge.DefaultThreshold,
		Prefix:    bridge.DefaultPrefix,
		Suffix:    bridge.DefaultSuffix,
		Namespace: "default",
		Separator: command.DefaultSeparator,
		LuaGlobal: "bridge",
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// RegistryOptions returns the bridge options these settings imply.
func (s *Settings) RegistryOptions() []bridge.Option {
	return []bridge.Option{
		bridge.WithThreshold(s.Threshold),
		bridge.WithPrefix(s.Prefix),
		bridge.WithSuffix(s.Suffix),
	}
}

var (
	identPattern    = regexp.MustCompile(`^[A-Za-z0-9_]*$`)
	typenamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)
)

// validate is a package-level singleton; building a validator is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("typename", func(fl validator.FieldLevel) bool {
		return typenamePattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks s. The first failing field is reported as a ConfigError
// named after its file key, such as "log.level".
func Validate(s *Settings) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return bridgeerrors.NewConfigError("", err)
	}
	fe := verrs[0]
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Settings."))
	return bridgeerrors.NewConfigError(field, fmt.Errorf("value %#v fails %q", fe.Value(), fe.Tag()))
}

// Load builds settings from the defaults, the file at path (skipped when
// path is empty) and the environment, then validates them.
func Load(path string) (*Settings, error) {
	s := Defaults()
	if path != "" {
		if err := LoadFile(path, s); err != nil {
			return nil, err
		}
	}
	if err := env.ParseWithOptions(s, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, bridgeerrors.NewConfigError("env", err)
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile overlays the TOML (.toml) or YAML (.yaml, .yml) file at path onto
// s. Keys not in Settings are rejected.
func LoadFile(path string, s *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), s)
		if err != nil {
			return bridgeerrors.NewConfigError(path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return bridgeerrors.NewConfigError(undecoded[0].String(), bridgeerrors.ErrUnknownOption)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
			return bridgeerrors.NewConfigError(path, err)
		}
	default:
		return bridgeerrors.NewConfigError(path, fmt.Errorf("unsupported config format %q", ext))
	}
	return nil
}

// FromMap overlays a setup table onto s and validates the result. Keys are
// the file keys; "log" is a nested table. Unknown keys and mistyped values
// are ConfigErrors and leave s unchanged.
func FromMap(s *Settings, m Map) error {
	next := *s
	if err := applyMap(&next, m); err != nil {
		return err
	}
	if err := Validate(&next); err != nil {
		return err
	}
	*s = next
	return nil
}

func applyMap(s *Settings, m Map) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var err error
		switch key {
		case "threshold":
			s.Threshold, err = MustGetInt(m, key)
		case "prefix":
			s.Prefix, err = MustGetString(m, key)
		case "suffix":
			s.Suffix, err = MustGetString(m, key)
		case "namespace":
			s.Namespace, err = MustGetString(m, key)
		case "separator":
			s.Separator, err = MustGetString(m, key)
		case "extension_dir":
			s.ExtensionDir, err = MustGetString(m, key)
		case "lua_global":
			s.LuaGlobal, err = MustGetString(m, key)
		case "log":
			var sub Map
			if sub, err = MustGetMap(m, key); err == nil {
				err = applyLogMap(&s.Log, sub)
			}
		default:
			err = bridgeerrors.NewConfigError(key, bridgeerrors.ErrUnknownOption)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applyLogMap(l *LogSettings, m Map) error {
	for key := range m {
		var err error
		switch key {
		case "level":
			l.Level, err = MustGetString(m, key)
		case "format":
			l.Format, err = MustGetString(m, key)
		default:
			err = bridgeerrors.NewConfigError("log."+key, bridgeerrors.ErrUnknownOption)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
