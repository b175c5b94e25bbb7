// Package charts renders aggregated sales views as Plotly-compatible figure
// descriptors written to disk.
package charts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/a2apipe/pkg/dataset"
)

// Type is the trace type of a figure.
type Type string

const (
	TypeBar  Type = "bar"
	TypeLine Type = "line"
)

// ParseType maps a requested chart type to a supported one. Anything other
// than "line" renders as a bar chart.
func ParseType(value string) Type {
	if strings.EqualFold(strings.TrimSpace(value), string(TypeLine)) {
		return TypeLine
	}
	return TypeBar
}

// Spec selects one aggregated view of a table.
type Spec struct {
	Metric    string `json:"metric"`
	GroupBy   string `json:"group_by"`
	ChartType Type   `json:"chart_type"`
	TopN      int    `json:"top_n"`
}

// Defaults used when a request leaves a field empty.
const (
	DefaultMetric  = dataset.ColumnSales
	DefaultGroupBy = dataset.ColumnProduct
	DefaultTopN    = 5
)

func (s Spec) withDefaults() Spec {
	if s.Metric == "" {
		s.Metric = DefaultMetric
	}
	if s.GroupBy == "" {
		s.GroupBy = DefaultGroupBy
	}
	s.ChartType = ParseType(string(s.ChartType))
	return s
}

// Descriptor reports a rendered figure.
type Descriptor struct {
	FigurePath string `json:"figure_path"`
	Metric     string `json:"metric"`
	GroupBy    string `json:"group_by"`
	ChartType  Type   `json:"chart_type"`
	TopN       int    `json:"top_n"`
}

// Figure is the serialized Plotly figure.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is a single series.
type Trace struct {
	Type string    `json:"type"`
	Mode string    `json:"mode,omitempty"`
	Name string    `json:"name"`
	X    []string  `json:"x"`
	Y    []float64 `json:"y"`
}

// Layout holds figure-level presentation settings.
type Layout struct {
	Title    Title  `json:"title"`
	Template string `json:"template"`
	XAxis    Axis   `json:"xaxis"`
	YAxis    Axis   `json:"yaxis"`
}

type Title struct {
	Text string `json:"text"`
}

type Axis struct {
	Title Title `json:"title"`
}

// FileName returns the figure file name for a metric and grouping.
func FileName(metric, groupBy string) string {
	return fmt.Sprintf("%s_by_%s.json", strings.ToLower(metric), strings.ToLower(groupBy))
}

// Build aggregates the table into a figure without touching the filesystem.
func Build(t *dataset.Table, spec Spec) (*Figure, Spec, error) {
	spec = spec.withDefaults()
	if !t.HasColumn(spec.Metric) {
		return nil, spec, fmt.Errorf("metric %q not in dataset", spec.Metric)
	}
	if !t.HasColumn(spec.GroupBy) {
		return nil, spec, fmt.Errorf("group_by %q not in dataset", spec.GroupBy)
	}

	groups := dataset.Aggregate(t, spec.GroupBy, spec.Metric)
	if spec.TopN > 0 && len(groups) > spec.TopN {
		groups = groups[:spec.TopN]
	}

	trace := Trace{
		Type: "bar",
		Name: spec.Metric,
		X:    make([]string, 0, len(groups)),
		Y:    make([]float64, 0, len(groups)),
	}
	if spec.ChartType == TypeLine {
		trace.Type = "scatter"
		trace.Mode = "lines+markers"
	}
	for _, g := range groups {
		trace.X = append(trace.X, g.Label)
		trace.Y = append(trace.Y, g.Value)
	}

	return &Figure{
		Data: []Trace{trace},
		Layout: Layout{
			Title:    Title{Text: fmt.Sprintf("%s by %s", spec.Metric, spec.GroupBy)},
			Template: "plotly_white",
			XAxis:    Axis{Title: Title{Text: spec.GroupBy}},
			YAxis:    Axis{Title: Title{Text: spec.Metric}},
		},
	}, spec, nil
}

// Render builds the figure and writes it into dir, creating dir if needed.
// Rendering the same view twice overwrites the earlier file.
func Render(t *dataset.Table, spec Spec, dir string) (Descriptor, error) {
	fig, spec, err := Build(t, spec)
	if err != nil {
		return Descriptor{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Descriptor{}, fmt.Errorf("create chart directory: %w", err)
	}
	path := filepath.Join(dir, FileName(spec.Metric, spec.GroupBy))
	encoded, err := json.MarshalIndent(fig, "", "  ")
	if err != nil {
		return Descriptor{}, fmt.Errorf("encode figure: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return Descriptor{}, fmt.Errorf("write figure: %w", err)
	}
	return Descriptor{
		FigurePath: path,
		Metric:     spec.Metric,
		GroupBy:    spec.GroupBy,
		ChartType:  spec.ChartType,
		TopN:       spec.TopN,
	}, nil
}
