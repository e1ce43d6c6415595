package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/glide/internal/dynamo"
	"github.com/san-kum/glide/internal/storage"
)

const scenarioYAML = `
name: substep study
description: fine then coarse sub-steps on the demo chain
steps:
  - preset: local_demo
    duration: 0.5
    winch_profile: {kind: none}
    current_profile: {kind: none}
    params:
      damping_ratio: 0.1
    save_as: demo_fine
  - preset: local_demo
    duration: 60
    dt: 0.05
    winch_profile: {kind: none}
    current_profile: {kind: none}
    params:
      tether_max_substep_dt: 0.05
    save_as: demo_coarse
  - preset: local_demo
    duration: 0.5
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "substep study" || len(sc.Steps) != 3 {
		t.Fatalf("unexpected scenario: %+v", sc)
	}

	cfg, err := sc.Steps[0].Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "demo_fine" || cfg.Duration != 0.5 || cfg.Tether.DampingRatio != 0.1 {
		t.Errorf("step overrides not applied: name=%s T=%v zeta=%v", cfg.Name, cfg.Duration, cfg.Tether.DampingRatio)
	}
	if cfg.WinchProfile.Kind != "none" {
		t.Errorf("winch profile = %q", cfg.WinchProfile.Kind)
	}

	if _, err := LoadScenario(writeScenario(t, "name: empty\n")); err == nil {
		t.Error("expected an error for a scenario without steps")
	}
}

func TestResolveUnknownParam(t *testing.T) {
	step := ScenarioStep{Preset: "local_demo", Params: map[string]float64{"warp": 9}}
	if _, err := step.Resolve(); err == nil {
		t.Error("expected an error for an unknown parameter")
	}
}

func TestRunScenarioStopsAtFailure(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	st := storage.New(t.TempDir())

	results, err := RunScenario(context.Background(), sc, st, nil)
	if !errors.Is(err, dynamo.ErrUnstable) {
		t.Fatalf("expected the coarse step to diverge, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected the failed step to be reported, got %d results", len(results))
	}
	if results[0].Result.Summary.Steps != 100 {
		t.Errorf("first step ran %d steps, want 100", results[0].Result.Summary.Steps)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 stored runs, got %d", len(runs))
	}
	failed, err := st.Load(results[1].RunID)
	if err != nil {
		t.Fatal(err)
	}
	if failed.Error == "" || failed.Preset != "demo_coarse" {
		t.Errorf("failed run metadata: %+v", failed)
	}
}
