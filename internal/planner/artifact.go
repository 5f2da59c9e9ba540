package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bam_sniper/internal/model"
)

// Artifact sentinel errors.
var (
	// ErrNoPlan signals that no plan artifact exists on disk.
	ErrNoPlan = errors.New("no plan artifact")
	// ErrPlanExists signals that an unconsumed plan is still owed.
	ErrPlanExists = errors.New("unconsumed plan artifact exists")
)

// SaveArtifact writes the plan to path. The write goes through a temp
// file and rename so a crash never leaves a half-written plan behind.
func SaveArtifact(path string, plan *model.DeltaPlan) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create plan directory: %w", err)
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish plan: %w", err)
	}
	return nil
}

// LoadArtifact reads the plan at path. Returns ErrNoPlan when no
// artifact exists.
func LoadArtifact(path string) (*model.DeltaPlan, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-configured path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoPlan
		}
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var plan model.DeltaPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &plan, nil
}

// DeleteArtifact removes the plan at path. Deleting an already-absent
// plan is not an error.
func DeleteArtifact(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}

// ArtifactExists reports whether an unconsumed plan artifact is on disk.
func ArtifactExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
