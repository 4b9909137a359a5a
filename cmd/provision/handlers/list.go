package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"
)

// Output formats of the list command.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// List handles the list command.
//
// It prints every node that is not being deleted, one per line, or the
// node descriptions as JSON or YAML.
func List(ctx context.Context, global Global, format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	env, err := setup(global)
	if err != nil {
		return err
	}
	defer env.finish()

	nodes, err := env.driver.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(nodes, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode nodes: %w", err)
		}
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(nodes)
		if err != nil {
			return fmt.Errorf("failed to encode nodes: %w", err)
		}
		_, err = stdout.Write(data)
		return err
	default:
		_, err = fmt.Fprint(stdout, renderNodes(nodes, isTerminal(stdout)))
		return err
	}
}
