// Package validation checks Zeebe job variables against the input schemas
// declared in the activity registry.
package validation

import (
	"fmt"
	"sort"

	"marketplace-verification/internal/common/errors"
	"marketplace-verification/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

// Validator holds one compiled input schema per task type.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the input schema of every activity in reg.
// Activities without a schema accept any input.
func NewValidator(reg *registry.ActivityRegistry) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	for _, a := range reg.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("compile input schema for %s: %w", a.TaskType, err)
		}
		v.schemas[a.TaskType] = schema
	}
	return v, nil
}

// ValidateInput checks the raw JSON variables of a job. Failures come back
// as an INVALID_JOB_INPUT StandardError listing every problem.
func (v *Validator) ValidateInput(taskType, variables string) error {
	schema, ok := v.schemas[taskType]
	if !ok {
		return nil
	}
	if variables == "" {
		variables = "{}"
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(variables))
	if err != nil {
		return errors.NewInvalidJobInputError(taskType, []string{fmt.Sprintf("unreadable variables: %v", err)})
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		problems[i] = desc.String()
	}
	sort.Strings(problems)
	return errors.NewInvalidJobInputError(taskType, problems)
}
