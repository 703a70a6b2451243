package config

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"
	"github.com/swaggest/jsonschema-go"
)

// Internal configuration data structures for driversync.

const (
	// DefaultFilename is looked up in the project directory when no
	// configuration file is given explicitly.
	DefaultFilename = "driversync.yaml"

	DefaultRepo       = "https://github.com/AaroSnid/stm32-drivers.git"
	DefaultDriversDir = "Drivers"
	DefaultSourceDir  = "Core/Src"
	DefaultIncludeDir = "Core/Inc"
	DefaultCloneDir   = "drivers_repo"
)

// DefaultDrivers is the built-in allow-list.
var DefaultDrivers = StringSet{"ICM-42688-P", "SN74HC595"}

// DefaultSourcePatterns select the files of a folder driver that are reported
// as compilable sources.
var DefaultSourcePatterns = StringSet{"*.c", "*.cpp"}

// Root is the top-level configuration structure used by driversync.
type Root struct {
	Repository Git                `json:"repository,omitzero"`
	Drivers    StringSet          `json:"drivers,omitempty"`
	Layout     Layout             `json:"layout,omitzero"`
	Secrets    map[string]*Secret `json:"secrets,omitempty"` // Schema validation overrides Secret to object type.

	_ struct{} `additionalProperties:"false"`
}

// Default returns the configuration used when no configuration file exists.
func Default() *Root {
	var r Root
	if err := r.unmarshal(&r); err != nil {
		panic(err) // defaults are static and always valid
	}
	return &r
}

// UnmarshalYAML implements the yaml.BytesUnmarshaler interface for the Root
// struct. It fills in defaults and injects the secret store into each secret
// reference so that internal callers can resolve secret values as needed.
func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal(r)
}

func (r *Root) UnmarshalJSON(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalJSON by type aliasing
	var raw rawRoot

	if err := json.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal(r)
}

func (*Root) unmarshal(raw *Root) error {
	for name := range raw.Secrets {
		raw.Secrets[name] = cmp.Or(raw.Secrets[name], &Secret{})
		raw.Secrets[name].Name = name
	}

	raw.Repository.Repo = cmp.Or(raw.Repository.Repo, DefaultRepo)
	if raw.Repository.Credentials != nil {
		raw.Repository.Credentials.value = raw.Secrets[raw.Repository.Credentials.Name]
	}

	if len(raw.Drivers) == 0 {
		raw.Drivers = slices.Clone(DefaultDrivers)
	}

	var seen StringSet
	for _, name := range raw.Drivers {
		if seen.Contains(name) {
			return fmt.Errorf("driver %q is listed more than once", name)
		}
		seen = append(seen, name)
	}

	raw.Layout.setDefaults()
	return raw.Layout.validate()
}

// Git defines the remote driver repository.
type Git struct {
	Repo        string     `json:"repo,omitempty"`
	Reference   *string    `json:"reference,omitempty"`
	Commit      *string    `json:"commit,omitempty"`
	Credentials *SecretRef `json:"credentials,omitempty"` // If nil, no authentication is used (public repository).
	// Note, JSON schema validation overrides this to string type.

	_ struct{} `additionalProperties:"false"`
}

// Layout defines where driver artifacts go inside the project directory. All
// paths are relative to the project root.
type Layout struct {
	DriversDir     string    `json:"drivers_dir,omitempty"`
	SourceDir      string    `json:"source_dir,omitempty"`
	IncludeDir     string    `json:"include_dir,omitempty"`
	CloneDir       string    `json:"clone_dir,omitempty"`
	SourcePatterns StringSet `json:"source_patterns,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

func (l *Layout) setDefaults() {
	l.DriversDir = cmp.Or(l.DriversDir, DefaultDriversDir)
	l.SourceDir = cmp.Or(l.SourceDir, DefaultSourceDir)
	l.IncludeDir = cmp.Or(l.IncludeDir, DefaultIncludeDir)
	l.CloneDir = cmp.Or(l.CloneDir, DefaultCloneDir)
	if len(l.SourcePatterns) == 0 {
		l.SourcePatterns = slices.Clone(DefaultSourcePatterns)
	}
}

func (l *Layout) validate() error {
	for key, dir := range map[string]string{
		"drivers_dir": l.DriversDir,
		"source_dir":  l.SourceDir,
		"include_dir": l.IncludeDir,
		"clone_dir":   l.CloneDir,
	} {
		if !filepath.IsLocal(filepath.FromSlash(dir)) {
			return fmt.Errorf("layout %s %q must be a relative path inside the project directory", key, dir)
		}
	}

	if l.CloneDir == "." {
		return errors.New("layout clone_dir must not be the project directory itself")
	}

	for _, pattern := range l.SourcePatterns {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("failed to compile source pattern %q: %w", pattern, err)
		}
	}

	return nil
}

// SourceMatchers returns the compiled source patterns.
func (l *Layout) SourceMatchers() ([]glob.Glob, error) {
	matchers := make([]glob.Glob, 0, len(l.SourcePatterns))
	for _, pattern := range l.SourcePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile source pattern %q: %w", pattern, err)
		}
		matchers = append(matchers, g)
	}
	return matchers, nil
}

type StringSet []string

// Contains reports whether s holds value, ignoring case.
func (s StringSet) Contains(value string) bool {
	return slices.ContainsFunc(s, func(x string) bool { return strings.EqualFold(x, value) })
}

type SecretRef struct {
	Name  string `json:"-"`
	value *Secret
}

// Resolve returns the typed credentials of the referenced secret, see
// Secret.Typed. A name missing from the secrets section is an error.
func (s *SecretRef) Resolve(ctx context.Context) (any, error) {
	if s.value == nil {
		return nil, fmt.Errorf("credentials refer to undefined secret %q", s.Name)
	}

	return s.value.Typed(ctx)
}

func (*SecretRef) PrepareJSONSchema(schema *jsonschema.Schema) error {
	schema.Type = nil
	schema.AddType(jsonschema.String)
	return nil
}

func (s *SecretRef) MarshalYAML() (any, error) {
	if s.Name == "" {
		return nil, nil
	}
	return s.Name, nil
}

func (s *SecretRef) MarshalJSON() ([]byte, error) {
	v, err := s.MarshalYAML()
	if err != nil {
		return nil, err
	}

	return json.Marshal(v)
}

func (s *SecretRef) UnmarshalYAML(bs []byte) error {
	if err := yaml.Unmarshal(bs, &s.Name); err != nil {
		return fmt.Errorf("expected scalar node: %w", err)
	}
	return nil
}

func (s *SecretRef) UnmarshalJSON(bs []byte) error {
	if err := json.Unmarshal(bs, &s.Name); err != nil {
		return fmt.Errorf("failed to unmarshal SecretRef: %w", err)
	}

	return nil
}

// Load reads the configuration from filenames. Several files (or directories
// of files) are merged in order, later values overriding earlier ones. With no
// filenames, the default configuration file in projectDir is used when it
// exists, and the built-in defaults otherwise. An empty projectDir skips the
// lookup.
func Load(filenames []string, projectDir string) (*Root, error) {
	switch len(filenames) {
	case 0:
	case 1:
		return ParseFile(filenames[0])
	default:
		bs, err := Merge(filenames, false)
		if err != nil {
			return nil, err
		}
		return Parse(bs)
	}

	if projectDir == "" {
		return Default(), nil
	}

	candidate := filepath.Join(projectDir, DefaultFilename)
	if _, err := os.Stat(candidate); err == nil {
		return ParseFile(candidate)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return Default(), nil
}

func ParseFile(filename string) (root *Root, err error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return Parse(bs)
}

func Parse(bs []byte) (*Root, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(bs)) == 0 {
		return Default(), nil
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &root, nil
}

func Validate(data []byte) error {
	var config any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}
	if config == nil { // empty document
		return nil
	}

	schema, err := rootSchema()
	if err != nil {
		return err
	}

	return schema.Validate(config)
}
