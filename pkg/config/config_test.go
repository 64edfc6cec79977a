package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	c := LoadConfig()
	if c.Language != "" || len(c.Aliases) != 0 || len(c.SubstitutePath) != 0 {
		t.Fatalf("default config should have no options set: %#v", c)
	}
	buf, err := os.ReadFile(filepath.Join(dir, "evloc", "config.yml"))
	if err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
	if !strings.Contains(string(buf), "# language: c++") {
		t.Fatalf("unexpected default config:\n%s", buf)
	}
}

func TestSaveLoadConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := createConfigPath(); err != nil {
		t.Fatal(err)
	}

	want := &Config{
		Aliases:        map[string][]string{"break": {"bp"}},
		SubstitutePath: SubstitutePathRules{{From: "/build", To: "/src"}},
		Language:       "ada",
		BreakpointFile: "bps.yml",
		LogMaxSize:     5,
		LogCompress:    true,
	}
	if err := SaveConfig(want); err != nil {
		t.Fatal(err)
	}
	got := LoadConfig()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("config mismatch:\n%#v\n%#v", got, want)
	}
	if rules := got.GetSubstitutePathRules(); !reflect.DeepEqual(rules, [][2]string{{"/build", "/src"}}) {
		t.Fatalf("wrong substitute path rules %v", rules)
	}
}

func TestDecodeConfig(t *testing.T) {
	c, err := decodeConfig(strings.NewReader("language: c\nprogram: ./a.out\nlog-max-backups: 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Language != "c" || c.Program != "./a.out" || c.LogMaxBackups != 2 {
		t.Fatalf("wrong config %#v", c)
	}
	if _, err := decodeConfig(strings.NewReader("language: [")); err == nil {
		t.Fatalf("expected error for malformed config")
	}
}
