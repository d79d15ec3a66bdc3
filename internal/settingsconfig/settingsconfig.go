// Package settingsconfig implements the three-level settings layering
// of spec §6 ("Configuration"): per-project overrides fall back to
// global defaults, which fall back to compile-time defaults.
//
// This generalizes the teacher's single-scope internal/config
// (project-only settings, persisted as one JSON file per project via
// config.FileStore) into two concrete scopes. The project scope keeps
// the teacher's JSON-file convention; the global scope is new and uses
// TOML (github.com/BurntSushi/toml, grounded on emergent-company-specmcp's
// go.mod), a natural fit for a single human-edited machine-wide
// defaults file the way the teacher's JSON fits a tool-written
// per-project state file.
package settingsconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

// StageSettings holds the per-stage overridable knobs (spec §3
// "Settings", §4.E.2 "Per-stage configuration").
type StageSettings struct {
	Model               string  `json:"model,omitempty" toml:"model,omitempty"`
	MaxTurns            int     `json:"max_turns,omitempty" toml:"max_turns,omitempty"`
	TimeoutSeconds      int     `json:"timeout_seconds,omitempty" toml:"timeout_seconds,omitempty"`
	AutoApproveThreshold float64 `json:"auto_approve_threshold,omitempty" toml:"auto_approve_threshold,omitempty"`
}

func (s StageSettings) isZero() bool {
	return s == StageSettings{}
}

func merge(base, override StageSettings) StageSettings {
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.MaxTurns != 0 {
		base.MaxTurns = override.MaxTurns
	}
	if override.TimeoutSeconds != 0 {
		base.TimeoutSeconds = override.TimeoutSeconds
	}
	if override.AutoApproveThreshold != 0 {
		base.AutoApproveThreshold = override.AutoApproveThreshold
	}
	return base
}

// ValidationHook names a project-defined script/command run as an
// automated gate check for a stage.
type ValidationHook struct {
	Stage   task.Stage `json:"stage" toml:"stage"`
	Command string     `json:"command" toml:"command"`
}

// Settings is one scope's worth of overrides (spec §3 "Settings").
type Settings struct {
	Stages          map[task.Stage]StageSettings `json:"stages,omitempty" toml:"stages,omitempty"`
	ValidationHooks []ValidationHook             `json:"validation_hooks,omitempty" toml:"validation_hooks,omitempty"`
}

// DefaultStageConfig returns the compile-time default settings for
// every stage (spec §9 "Auto-approval thresholds... default to 4.0").
func DefaultStageConfig() map[task.Stage]StageSettings {
	return map[task.Stage]StageSettings{
		task.StageBrainstorm:   {Model: "default", MaxTurns: 20, TimeoutSeconds: 600},
		task.StageDesignReview: {Model: "default", MaxTurns: 20, TimeoutSeconds: 600},
		task.StagePlan:         {Model: "default", MaxTurns: 30, TimeoutSeconds: 900, AutoApproveThreshold: 4.0},
		task.StageImplement:    {Model: "default", MaxTurns: 80, TimeoutSeconds: 3600},
		task.StageCodeReview:   {Model: "default", MaxTurns: 20, TimeoutSeconds: 600, AutoApproveThreshold: 4.0},
		task.StageVerify:       {Model: "default", MaxTurns: 30, TimeoutSeconds: 900},
	}
}

// PausesAfter reports whether the given stage requires a gate before
// advancing (spec §4.E.2 "pauses flag").
func PausesAfter(s task.Stage) bool {
	switch s {
	case task.StageBrainstorm, task.StagePlan, task.StageDesignReview, task.StageCodeReview, task.StageVerify:
		return true
	default:
		return false
	}
}

// Store resolves the layered configuration for a project.
type Store struct {
	globalPath string
}

// NewStore creates a Store reading the global scope from the given
// path (typically ~/.config/pipeline-engine/settings.toml).
func NewStore(globalPath string) *Store {
	return &Store{globalPath: globalPath}
}

// DefaultGlobalPath returns the conventional location for the global
// settings file.
func DefaultGlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "pipeline-engine", "settings.toml")
}

// LoadGlobal reads the global TOML settings file. A missing file is
// not an error — it returns an empty Settings (compile-time defaults
// apply everywhere).
func (s *Store) LoadGlobal() (Settings, error) {
	var out Settings
	data, err := os.ReadFile(s.globalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, fmt.Errorf("reading global settings: %w", err)
	}
	if _, err := toml.Decode(string(data), &out); err != nil {
		return Settings{}, fmt.Errorf("parsing global settings toml: %w", err)
	}
	return out, nil
}

// ProjectSettingsPath returns the per-project settings.json path.
func ProjectSettingsPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".pipeline", "settings.json")
}

// LoadProject reads the per-project JSON settings file. A missing
// file is not an error — it returns an empty Settings.
func (s *Store) LoadProject(projectRoot string) (Settings, error) {
	var out Settings
	data, err := os.ReadFile(ProjectSettingsPath(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, fmt.Errorf("reading project settings: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Settings{}, fmt.Errorf("parsing project settings json: %w", err)
	}
	return out, nil
}

// SaveProject writes the per-project JSON settings file, creating its
// directory if needed — mirrors the teacher's config.FileStore.Save.
func (s *Store) SaveProject(projectRoot string, settings Settings) error {
	dir := filepath.Dir(ProjectSettingsPath(projectRoot))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling project settings: %w", err)
	}
	return os.WriteFile(ProjectSettingsPath(projectRoot), data, 0o644)
}

// ResolveStageConfig layers project -> global -> compile-time default
// for a single stage, returning the first explicitly-set field found
// at each level, outermost in.
func (s *Store) ResolveStageConfig(projectRoot string, stage task.Stage) (StageSettings, error) {
	result := DefaultStageConfig()[stage]

	global, err := s.LoadGlobal()
	if err != nil {
		return StageSettings{}, err
	}
	if gs, ok := global.Stages[stage]; ok && !gs.isZero() {
		result = merge(result, gs)
	}

	project, err := s.LoadProject(projectRoot)
	if err != nil {
		return StageSettings{}, err
	}
	if ps, ok := project.Stages[stage]; ok && !ps.isZero() {
		result = merge(result, ps)
	}

	return result, nil
}
