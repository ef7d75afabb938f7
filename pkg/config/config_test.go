package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name" toml:"name"`
}

func (s *sample) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWithDefaults_PrefersGivenFile(t *testing.T) {
	dir := t.TempDir()
	given := filepath.Join(dir, "config.yaml")
	fallback := filepath.Join(dir, "default.yaml")
	writeConfig(t, given, "name: given\n")
	writeConfig(t, fallback, "name: fallback\n")

	var s sample
	if err := LoadWithDefaults(given, fallback, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "given" {
		t.Errorf("name = %q, want given", s.Name)
	}
}

func TestLoadWithDefaults_FallsBack(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "default.toml")
	writeConfig(t, fallback, "name = \"fallback\"\n")

	var s sample
	if err := LoadWithDefaults(filepath.Join(dir, "missing.yaml"), fallback, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "fallback" {
		t.Errorf("name = %q, want fallback", s.Name)
	}
}

func TestLoadWithDefaults_NothingFound(t *testing.T) {
	dir := t.TempDir()
	var s sample
	err := LoadWithDefaults(filepath.Join(dir, "missing.yaml"), "", &s)
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "name: \"\"\n")
	var s sample
	if err := Load(path, &s); err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Errorf("err = %v", err)
	}
}
