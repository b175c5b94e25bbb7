package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/a2apipe/pkg/pipeline"
)

func render(w io.Writer, result *pipeline.Result, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		return renderYAML(w, result)
	default:
		renderText(w, result)
		return nil
	}
}

// renderYAML goes through JSON so the envelope's json tags drive the keys.
func renderYAML(w io.Writer, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func renderText(w io.Writer, result *pipeline.Result) {
	fmt.Fprintln(w, "=== Reader Summary ===")
	fmt.Fprintln(w, result.Reader.Summary)

	fmt.Fprintln(w, "\n=== Analyst Highlights ===")
	fmt.Fprintln(w, result.Analyst.Analysis)

	fmt.Fprintln(w, "\n=== Visualizer Insights ===")
	fmt.Fprintln(w, result.Visualizer.Insights)

	fmt.Fprintln(w, "\nGenerated chart artifacts:")
	paths := result.Visualizer.FigurePaths()
	if len(paths) == 0 {
		fmt.Fprintln(w, "No chart artifacts reported.")
		return
	}
	for _, path := range paths {
		fmt.Fprintf(w, " - %s\n", path)
	}
}

func jsonIndent(value any) (string, error) {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
