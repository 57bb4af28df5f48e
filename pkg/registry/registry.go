// Package registry describes the Zeebe activities the verification workers
// serve: task type, input schema, error codes and retry budget.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed activities.json
var defaultActivities []byte

// DefaultRegistry returns the activities built into the binary.
func DefaultRegistry() *ActivityRegistry {
	var reg ActivityRegistry
	if err := json.Unmarshal(defaultActivities, &reg); err != nil {
		panic(fmt.Sprintf("registry: embedded activities are invalid: %v", err))
	}
	return &reg
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes reg to path as indented JSON, creating parent directories.
func Save(reg *ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write registry file: %w", err)
	}
	return nil
}

// Find returns the activity serving taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Check reports the first structural problem in r: no activities, a
// duplicate id or task type, or a missing required field.
func (r *ActivityRegistry) Check() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, a := range r.Activities {
		switch {
		case a.ID == "":
			return fmt.Errorf("activity missing required field: id")
		case a.DisplayName == "":
			return fmt.Errorf("activity %s missing required field: displayName", a.ID)
		case a.TaskType == "":
			return fmt.Errorf("activity %s missing required field: taskType", a.ID)
		case a.Category == "":
			return fmt.Errorf("activity %s missing required field: category", a.ID)
		case ids[a.ID]:
			return fmt.Errorf("duplicate activity id: %s", a.ID)
		case taskTypes[a.TaskType]:
			return fmt.Errorf("duplicate task type: %s", a.TaskType)
		}
		ids[a.ID] = true
		taskTypes[a.TaskType] = true
	}
	return nil
}
