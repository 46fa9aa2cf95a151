package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	engine "github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1"
	"gopkg.in/yaml.v3"
)

const (
	engineSchemaName   = "backtest-engine-v1-config.json"
	engineSampleName   = "backtest-engine-v1-config.yaml"
	strategySchemaName = "strategy-config.json"
	strategySampleName = "strategy-config.yaml"
)

// schemaSource is a config that can describe itself as JSON schema.
type schemaSource interface {
	GenerateSchemaJSON() (string, error)
}

// generate writes the JSON schemas of the engine and strategy configs into dir
// together with sample YAML files that reference them. Existing samples are
// left untouched.
func generate(dir string) error {
	engineConfig := engine.EmptyConfig()
	strategyConfig := engine.DefaultStrategyConfig()

	files := []struct {
		schema     schemaSource
		sample     any
		schemaName string
		sampleName string
	}{
		{schema: &engineConfig, sample: engineConfig, schemaName: engineSchemaName, sampleName: engineSampleName},
		{schema: &strategyConfig, sample: strategyConfig, schemaName: strategySchemaName, sampleName: strategySampleName},
	}

	for _, file := range files {
		if err := generateSchemaFile(file.schema, filepath.Join(dir, file.schemaName)); err != nil {
			return err
		}

		if err := generateSampleConfig(file.sample, filepath.Join(dir, file.sampleName), file.schemaName); err != nil {
			return err
		}
	}

	return nil
}

func generateSchemaFile(config schemaSource, schemaPath string) error {
	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(schemaPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}

	log.Printf("Schema generated at %s", schemaPath)

	return nil
}

func generateSampleConfig(config any, samplePath string, schemaName string) error {
	if _, err := os.Stat(samplePath); err == nil {
		return nil
	}

	yamlBytes, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal sample config to yaml: %w", err)
	}

	yamlBytes = append([]byte("# yaml-language-server: $schema="+schemaName+"\n"), yamlBytes...)

	if err := os.WriteFile(samplePath, yamlBytes, 0644); err != nil {
		return fmt.Errorf("failed to write sample config to file: %w", err)
	}

	log.Printf("Sample config generated at %s", samplePath)

	return nil
}

func main() {
	dir := "./config"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	if err := generate(dir); err != nil {
		log.Fatal(err)
	}
}
