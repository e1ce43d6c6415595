// Package automation runs scripted sequences of simulations described in a
// YAML scenario file.
package automation

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/control"
	"github.com/san-kum/glide/internal/logging"
	"github.com/san-kum/glide/internal/metrics"
	"github.com/san-kum/glide/internal/optim"
	"github.com/san-kum/glide/internal/sim"
	"github.com/san-kum/glide/internal/storage"
)

// Scenario defines a scripted simulation sequence.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run of a scenario. Zero fields keep the preset value.
type ScenarioStep struct {
	Preset   string               `yaml:"preset"`
	Config   string               `yaml:"config"`
	Duration float64              `yaml:"duration"`
	Dt       float64              `yaml:"dt"`
	Stepper  string               `yaml:"stepper"`
	Winch    *control.ProfileSpec `yaml:"winch_profile"`
	Current  *control.ProfileSpec `yaml:"current_profile"`
	Params   map[string]float64   `yaml:"params"`
	SaveAs   string               `yaml:"save_as"`
}

// StepResult pairs a finished step with its stored run ID, empty when the
// scenario runs without a store.
type StepResult struct {
	RunID  string
	Result *sim.Result
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}

	return &scenario, nil
}

// Resolve builds the configuration of one step.
func (s ScenarioStep) Resolve() (config.Config, error) {
	preset := s.Preset
	if preset == "" {
		preset = "engineering"
	}
	cfg, err := config.GetPreset(preset)
	if err != nil {
		return config.Config{}, err
	}
	if s.Config != "" {
		if cfg, err = config.Load(s.Config, cfg); err != nil {
			return config.Config{}, err
		}
	}

	if s.Duration > 0 {
		cfg.Duration = s.Duration
	}
	if s.Dt > 0 {
		cfg.Dt = s.Dt
	}
	if s.Stepper != "" {
		cfg.Stepper = s.Stepper
	}
	if s.Winch != nil {
		cfg.WinchProfile = *s.Winch
	}
	if s.Current != nil {
		cfg.CurrentProfile = *s.Current
	}
	for name, v := range s.Params {
		set, ok := optim.Params[name]
		if !ok {
			return config.Config{}, fmt.Errorf("unknown parameter %q", name)
		}
		set(&cfg, v)
	}
	if s.SaveAs != "" {
		cfg.Name = s.SaveAs
	}
	return cfg, nil
}

// RunScenario executes the steps in order, saving each to st when it is
// not nil. It stops at the first failing step and returns what completed,
// the failed run included.
func RunScenario(ctx context.Context, scenario *Scenario, st *storage.Store, log logging.Logger) ([]StepResult, error) {
	if log == nil {
		log = logging.Noop()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.Resolve()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		log.Info(ctx, "scenario step",
			logging.String("scenario", scenario.Name),
			logging.Int("step", i+1),
			logging.Int("of", len(scenario.Steps)),
			logging.String("preset", cfg.Name),
		)

		s, err := sim.New(cfg, nil, nil, log)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		for _, m := range metrics.Defaults() {
			s.AddMetric(m)
		}

		runCtx := ctx
		if scenario.Name != "" {
			runCtx = logging.ContextWithRunID(ctx, fmt.Sprintf("%s/%d", scenario.Name, i+1))
		}
		result, runErr := s.Run(runCtx)
		sr := StepResult{Result: result}
		if st != nil && result != nil {
			if sr.RunID, err = st.Save(result, cfg.SaveEnergyCSV, runErr); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)

		if runErr != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, runErr)
		}
	}

	return results, nil
}
