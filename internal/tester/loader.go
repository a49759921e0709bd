package tester

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Fixed locations of the declarative test inputs.
const (
	ConfigPath  = "database/tests/config.yaml"
	SuitesDir   = "database/tests/suites"
	FixturesDir = "database/tests/fixtures"
)

// LoadSpecs reads the optional shared config and every suite file. Documents
// are checked against the closed schema first, then decoded strictly, so both
// structural and typo errors surface with the offending file named. A project
// with no suite files is an error.
func LoadSpecs() (LoadedSpecs, error) {
	var specs LoadedSpecs

	global, err := loadGlobalConfig()
	if err != nil {
		return specs, err
	}
	specs.Global = global

	suites, err := loadSuites()
	if err != nil {
		return specs, err
	}
	if len(suites) == 0 {
		return specs, fmt.Errorf("no suite files found in %s", SuitesDir)
	}
	specs.Suites = suites
	return specs, nil
}

func loadGlobalConfig() (GlobalConfig, error) {
	var cfg GlobalConfig
	raw, err := os.ReadFile(ConfigPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", ConfigPath, err)
	}
	if err := validateDocument(ConfigPath, raw, "#Config"); err != nil {
		return cfg, err
	}
	if err := decodeYAMLStrict(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", ConfigPath, err)
	}
	return cfg, nil
}

func loadSuites() ([]LoadedSuite, error) {
	var suites []LoadedSuite
	err := filepath.WalkDir(SuitesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == SuitesDir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		rel := filepath.ToSlash(path)
		if err := validateDocument(rel, raw, "#Suite"); err != nil {
			return err
		}
		var spec SuiteSpec
		if err := decodeYAMLStrict(raw, &spec); err != nil {
			return fmt.Errorf("parsing %s: %w", rel, err)
		}
		suites = append(suites, LoadedSuite{Path: rel, Spec: spec})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(suites, func(i, j int) bool { return suites[i].Path < suites[j].Path })
	return suites, nil
}

func decodeYAMLStrict(raw []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
