package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateHome sets HOME to a temp directory to avoid touching the real
// ~/.episim/
func isolateHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", home)
	return home
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// writeInputs writes a small town: households of two, everyone works at
// one of two workplaces.
func writeInputs(t *testing.T, dir string) (cfgPath string) {
	t.Helper()

	var events strings.Builder
	line := func(typ string, time int, person, container, activity string) {
		fmt.Fprintf(&events, `{"type":%q,"time":%d,"person":%q,"container":%q,"activity":%q}`+"\n",
			typ, time, person, container, activity)
	}
	var population strings.Builder
	population.WriteString("id,district,age,home\n")
	for i := range 20 {
		p, home := fmt.Sprintf("p%02d", i), fmt.Sprintf("h%02d", i/2)
		line("actend", 28800, p, home, "home")
		district := "north"
		if i >= 10 {
			district = "south"
		}
		fmt.Fprintf(&population, "%s,%s,%d,%s\n", p, district, 20+i, home)
	}
	for i := range 20 {
		line("actstart", 28800, fmt.Sprintf("p%02d", i), fmt.Sprintf("w%d", i%2), "work")
	}
	for i := range 20 {
		line("actend", 61200, fmt.Sprintf("p%02d", i), fmt.Sprintf("w%d", i%2), "work")
		line("actstart", 61200, fmt.Sprintf("p%02d", i), fmt.Sprintf("h%02d", i/2), "home")
	}

	eventsPath := filepath.Join(dir, "events.jsonl")
	popPath := filepath.Join(dir, "population.csv")
	cfgPath = filepath.Join(dir, "episim.yaml")
	if err := os.WriteFile(eventsPath, []byte(events.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(popPath, []byte(population.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := fmt.Sprintf(`simulation:
  seed: 3
  threads: 2
  iterations: 5
  start_date: "2020-03-02"
  initial_infections: 2
  calibration_parameter: 0.00002
infection_params:
  home: 1
  work: 1
policy:
  kind: fixed
  fixed:
    work:
      day-3: {fraction: 0.5}
logging:
  level: debug
input:
  events: %s
  population: %s
`, eventsPath, popPath)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestNewRootCmd(t *testing.T) {
	rootCmd := newRootCmd()
	want := map[string]bool{"version": false, "run": false, "report": false, "serve": false, "validate": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if rootCmd.PersistentFlags().Lookup("json") == nil {
		t.Error("missing persistent --json flag")
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "episim version "+version) {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if v["version"] != version {
		t.Errorf("version = %q, want %q", v["version"], version)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		n, of int64
		want  string
	}{
		{0, 0, "0%"},
		{1, 4, "25%"},
		{1, 3, "33.3%"},
		{10, 10, "100%"},
	}
	for _, tt := range tests {
		if got := percent(tt.n, tt.of); got != tt.want {
			t.Errorf("percent(%d, %d) = %q, want %q", tt.n, tt.of, got, tt.want)
		}
	}
}
