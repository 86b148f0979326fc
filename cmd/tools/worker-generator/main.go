// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"readiness-workers/pkg/registry"
)

// WorkerData holds data for templates
type WorkerData struct {
	ID              string
	Name            string
	PackageName     string
	TaskType        string
	Dir             string
	TimeoutLiteral  string
	InputSchema     map[string]interface{}
	OutputSchema    map[string]interface{}
	InputSchemaJSON string
}

var templates = map[string]string{
	"handler.go":      handlerTemplate,
	"config.go":       configTemplate,
	"models.go":       modelsTemplate,
	"schema.go":       schemaTemplate,
	"handler_test.go": testTemplate,
}

// goTypeFromJSONType maps JSON schema types to Go types
func goTypeFromJSONType(jsonType interface{}) string {
	switch jsonType {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	default:
		return "interface{}"
	}
}

// structFields renders one field per schema property, sorted so the output is stable.
func structFields(schema map[string]interface{}) string {
	props, _ := schema["properties"].(map[string]interface{})
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	var fields []string
	for _, name := range names {
		details, _ := props[name].(map[string]interface{})
		field := fmt.Sprintf("\t%s %s `json:\"%s\"`", exportedName(name), goTypeFromJSONType(details["type"]), name)
		if desc, ok := details["description"].(string); ok && desc != "" {
			field += " // " + desc
		}
		fields = append(fields, field)
	}
	return strings.Join(fields, "\n")
}

// exportedName turns orgId or match_count into OrgID or MatchCount.
func exportedName(name string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' }) {
		if part == "id" || part == "Id" {
			b.WriteString("ID")
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	out := b.String()
	if strings.HasSuffix(out, "Id") {
		out = strings.TrimSuffix(out, "Id") + "ID"
	}
	return out
}

func timeoutLiteral(timeout string) string {
	d, err := time.ParseDuration(timeout)
	if err != nil || d <= 0 {
		d = 15 * time.Second
	}
	if d%time.Second == 0 {
		return fmt.Sprintf("%d * time.Second", d/time.Second)
	}
	return fmt.Sprintf("%d * time.Millisecond", d/time.Millisecond)
}

func newWorkerData(a *registry.Activity) (WorkerData, error) {
	inputSchema := a.InputSchema
	if inputSchema == nil {
		inputSchema = map[string]interface{}{"type": "object"}
	}
	raw, err := json.MarshalIndent(inputSchema, "", "  ")
	if err != nil {
		return WorkerData{}, fmt.Errorf("marshal input schema: %w", err)
	}
	return WorkerData{
		ID:              a.ID,
		Name:            a.DisplayName,
		PackageName:     strings.ReplaceAll(a.ID, "-", ""),
		TaskType:        a.TaskType,
		Dir:             strings.ToLower(a.Category),
		TimeoutLiteral:  timeoutLiteral(a.Timeout),
		InputSchema:     inputSchema,
		OutputSchema:    a.OutputSchema,
		InputSchemaJSON: string(raw),
	}, nil
}

// generate writes a worker scaffold for the activity and returns its directory.
func generate(a *registry.Activity, outputDir string) (string, error) {
	data, err := newWorkerData(a)
	if err != nil {
		return "", err
	}

	workerDir := filepath.Join(outputDir, data.Dir, data.ID)
	if err := os.MkdirAll(workerDir, 0755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	funcMap := template.FuncMap{"structFields": structFields}
	for filename, tmplStr := range templates {
		tmpl, err := template.New(filename).Funcs(funcMap).Parse(tmplStr)
		if err != nil {
			return "", fmt.Errorf("parse template %s: %w", filename, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("execute template %s: %w", filename, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return "", fmt.Errorf("format %s: %w", filename, err)
		}
		if err := os.WriteFile(filepath.Join(workerDir, filename), src, 0644); err != nil {
			return "", fmt.Errorf("write %s: %w", filename, err)
		}
	}
	return workerDir, nil
}

func main() {
	activity := flag.String("activity", "", "Activity ID from registry (e.g., score-readiness)")
	outputDir := flag.String("output", "./internal/workers/", "Output directory for the generated worker")
	registryPath := flag.String("registry", "configs/activity-registry.json", "Path to the activity registry JSON file")
	flag.Parse()

	if *activity == "" {
		fmt.Println("Usage: worker-generator --activity <id> --output <dir> [--registry <path>]")
		fmt.Println("\nExample:")
		fmt.Println("  go run cmd/tools/worker-generator/main.go --activity score-readiness")
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry from %s: %v\n", *registryPath, err)
		os.Exit(1)
	}

	var found *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == *activity {
			found = &reg.Activities[i]
			break
		}
	}
	if found == nil {
		fmt.Printf("Activity '%s' not found in registry %s\n", *activity, *registryPath)
		os.Exit(1)
	}

	workerDir, err := generate(found, *outputDir)
	if err != nil {
		fmt.Printf("Error generating worker: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Worker scaffold generated at: %s\n", workerDir)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Implement execute in handler.go\n")
	fmt.Printf("  2. Tighten the input schema in schema.go\n")
	fmt.Printf("  3. Register the worker in cmd/worker-manager/main.go\n")
	fmt.Printf("  4. Add configuration to configs/config.yaml\n")
}
