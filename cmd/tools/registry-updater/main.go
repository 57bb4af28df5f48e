// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"marketplace-verification/pkg/registry"
)

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "export":
		err = runExport(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	default:
		help()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "registry-updater %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// runExport writes the built-in registry to disk so operators can override
// it through workers.registryPath.
func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	path := fs.String("path", "configs/activity-registry.json", "Path to registry file")
	fs.Parse(args)

	reg := registry.DefaultRegistry()
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if err := registry.Save(reg, *path); err != nil {
		return err
	}
	fmt.Printf("Exported %d activities to %s\n", len(reg.Activities), *path)
	return nil
}

func runUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	path := fs.String("path", "configs/activity-registry.json", "Path to registry file")
	taskType := fs.String("taskType", "", "Task type of the activity to update")
	field := fs.String("field", "", "Field to update (status, version, timeout, retries, description)")
	value := fs.String("value", "", "New value for the field")
	fs.Parse(args)

	if *taskType == "" || *field == "" || *value == "" {
		fs.Usage()
		return fmt.Errorf("taskType, field and value are required")
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	activity, ok := reg.Find(*taskType)
	if !ok {
		return fmt.Errorf("activity with task type %s not found", *taskType)
	}

	switch *field {
	case "status":
		activity.ImplementationStatus = *value
	case "version":
		activity.Version = *value
	case "description":
		activity.Description = *value
	case "timeout":
		if _, err := time.ParseDuration(*value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = *value
	case "retries":
		retries, err := strconv.Atoi(*value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", *field)
	}

	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if err := registry.Save(reg, *path); err != nil {
		return err
	}
	fmt.Printf("Updated %s: %s = %s\n", *taskType, *field, *value)
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	path := fs.String("path", "configs/activity-registry.json", "Path to registry file")
	fs.Parse(args)

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	if err := reg.Check(); err != nil {
		return err
	}
	fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  export    Write the built-in activity registry to a file
  update    Update a field of an activity, addressed by task type
  validate  Validate a registry file

Examples:
  registry-updater export -path configs/activity-registry.json
  registry-updater update -taskType decide-payment -field retries -value 5
  registry-updater validate -path configs/activity-registry.json
`)
}
