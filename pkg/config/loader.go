package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Common errors for scenario loading.
var (
	ErrFileNotFound = errors.New("scenario file not found")
	ErrInvalidJSON  = errors.New("invalid JSON syntax")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrEmptyFile    = errors.New("scenario file is empty")
	ErrIncludeCycle = errors.New("include cycle")
)

// scenarioPattern selects the files loaded from a directory.
const scenarioPattern = "**/*.{yaml,yml,json}"

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars replaces ${VAR} and ${VAR:-default} with environment
// values. Unset variables without a default become empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		if val := os.Getenv(sub[1]); val != "" {
			return val
		}
		return sub[2]
	})
}

// Load reads a scenario from a file, or merges every scenario file under a
// directory in lexical order. Includes are resolved relative to the file
// naming them.
func Load(path string) (*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	l := &fileLoader{active: map[string]bool{}, done: map[string]bool{}}
	if !info.IsDir() {
		return l.load(path)
	}

	files, err := doublestar.Glob(os.DirFS(path), scenarioPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	sort.Strings(files)

	merged := &Scenario{}
	for _, f := range files {
		sc, err := l.load(filepath.Join(path, filepath.FromSlash(f)))
		if err != nil {
			return nil, err
		}
		merged.merge(sc)
	}
	return merged, nil
}

// Parse decodes one scenario document. name is used in error messages and
// picks the format: ".json" files must be valid JSON, anything else is
// read as YAML.
func Parse(data []byte, name string) (*Scenario, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	expanded := []byte(ExpandEnvVars(string(data)))

	isJSON := strings.EqualFold(filepath.Ext(name), ".json")
	if isJSON && !json.Valid(expanded) {
		return nil, fmt.Errorf("%w in %s", ErrInvalidJSON, name)
	}

	// JSON is a subset of YAML, so one decoder serves both formats and
	// keeps fixture order.
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		if isJSON {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return nil, fmt.Errorf("%w in %s: %v", ErrInvalidYAML, name, err)
	}
	return &sc, nil
}

// fileLoader loads each file once and rejects include cycles.
type fileLoader struct {
	active map[string]bool
	done   map[string]bool
}

func (l *fileLoader) load(path string) (*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if l.active[abs] {
		return nil, fmt.Errorf("%w: %s", ErrIncludeCycle, path)
	}
	if l.done[abs] {
		return &Scenario{}, nil
	}
	l.active[abs] = true
	defer delete(l.active, abs)
	l.done[abs] = true

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	sc, err := Parse(data, path)
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(path)
	includes := sc.Include
	sc.Include = nil
	for _, pattern := range includes {
		matches, err := expandGlob(resolvePath(baseDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("%s: include %q: %w", path, pattern, err)
		}
		if len(matches) == 0 && !hasMeta(pattern) {
			return nil, fmt.Errorf("%s: include %q: %w", path, pattern, ErrFileNotFound)
		}
		for _, m := range matches {
			inc, err := l.load(m)
			if err != nil {
				return nil, err
			}
			sc.merge(inc)
		}
	}
	return sc, nil
}

// merge appends other's declarations. Scalar settings already set win.
func (s *Scenario) merge(other *Scenario) {
	if s.Name == "" {
		s.Name = other.Name
	}
	if s.Namespace == "" {
		s.Namespace = other.Namespace
	}
	if s.Timing == 0 {
		s.Timing = other.Timing
	}
	if s.Upstream == "" {
		s.Upstream = other.Upstream
	}
	s.Passthrough = append(s.Passthrough, other.Passthrough...)
	s.Models = append(s.Models, other.Models...)
	s.Resources = append(s.Resources, other.Resources...)
	s.Routes = append(s.Routes, other.Routes...)
	s.Fixtures = append(s.Fixtures, other.Fixtures...)
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// expandGlob returns the sorted files matching pattern. Supports **.
func expandGlob(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
