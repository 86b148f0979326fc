// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"readiness-workers/pkg/registry"
)

const defaultRegistryPath = "configs/activity-registry.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	addPath := addCmd.String("path", defaultRegistryPath, "Path to registry file")
	idAdd := addCmd.String("id", "", "Activity ID (e.g., score-readiness)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Score Readiness)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "", "Category (readiness, matching)")
	taskType := addCmd.String("taskType", "", "Zeebe Task Type (defaults to id)")
	version := addCmd.String("version", "1.0.0", "Version")
	timeout := addCmd.String("timeout", "15s", "Job timeout")
	implStatus := addCmd.String("status", "planned", "Implementation Status (planned, in-progress, completed, verified)")

	// Update command flags
	updatePath := updateCmd.String("path", defaultRegistryPath, "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, timeout, retries, ...)")
	value := updateCmd.String("value", "", "New value for the field")

	// Validate command flags
	validatePath := validateCmd.String("path", defaultRegistryPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *description == "" || *category == "" {
			fmt.Println("Error: id, displayName, description and category are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		if *taskType == "" {
			*taskType = *idAdd
		}
		err = add(*addPath, registry.Activity{
			ID:                   *idAdd,
			DisplayName:          *displayName,
			Description:          *description,
			Category:             *category,
			Version:              *version,
			TaskType:             *taskType,
			ImplementationStatus: *implStatus,
			InputSchema:          map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
			OutputSchema:         map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
			ErrorCodes:           []string{"INVALID_INPUT"},
			Timeout:              *timeout,
			Workflows:            []string{},
			Tags:                 []string{},
		})
		if err == nil {
			fmt.Printf("Added activity: %s\n", *idAdd)
		}

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err = update(*updatePath, *idUpdate, *field, *value)
		if err == nil {
			fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		var reg *registry.ActivityRegistry
		if reg, err = registry.LoadRegistry(*validatePath); err == nil {
			if err = reg.Validate(); err == nil {
				fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))
			}
		}

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func add(path string, activity registry.Activity) error {
	reg, err := registry.LoadRegistry(path)
	if os.IsNotExist(err) {
		reg, err = registry.New(), nil
	}
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Add(activity); err != nil {
		return err
	}
	return reg.Save(path)
}

func update(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Update(id, field, value); err != nil {
		return err
	}
	return reg.Save(path)
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new activity to the registry
  update   Update an existing activity's field
  validate Validate the registry file
  help     Show this help message

Examples:
  registry-updater add -id score-readiness -displayName "Score Readiness" -description "Scores a readiness rubric" -category readiness
  registry-updater update -id score-readiness -field status -value verified
  registry-updater validate -path configs/activity-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`, "\n")
}
