package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/coral-modules/pkg/sdk/modules"
)

// OutputFormat represents the output format type.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
	FormatCSV  OutputFormat = "csv"
)

// ParseOutputFormat validates a --format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want text, json, yaml or csv)", s)
	}
}

var _ pflag.Value = (*OutputFormat)(nil)

// Set implements pflag.Value.
func (f *OutputFormat) Set(s string) error {
	v, err := ParseOutputFormat(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f *OutputFormat) String() string { return string(*f) }

// Type implements pflag.Value.
func (f *OutputFormat) Type() string { return "format" }

// Report is one snapshot of the images loaded into a process.
type Report struct {
	Process ProcessInfo     `json:"process" yaml:"process"`
	Images  []modules.Image `json:"images" yaml:"images"`
}

// OutputFormatter renders a Report.
type OutputFormatter interface {
	FormatReport(report *Report) (string, error)
}

// NewFormatter creates an output formatter for the given format.
func NewFormatter(format OutputFormat) OutputFormatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}

// TextFormatter formats output as a human-readable table.
type TextFormatter struct{}

// FormatReport formats the report as a table.
// nolint: errcheck
func (f *TextFormatter) FormatReport(report *Report) (string, error) {
	var buf strings.Builder

	p := report.Process
	fmt.Fprintf(&buf, "Process: %s (pid %d)\n", orDash(p.Name), p.PID)
	if p.Hostname != "" {
		fmt.Fprintf(&buf, "Host:    %s %s %s\n", p.Hostname, p.Kernel, p.Arch)
	}
	fmt.Fprintf(&buf, "Images:  %d\n\n", len(report.Images))

	if len(report.Images) == 0 {
		buf.WriteString("No loaded images found.\n")
		return buf.String(), nil
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "IMAGE ADDR\tSIZE\tDEBUG ID\tCODE ID\tCODE FILE")
	for _, img := range report.Images {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			img.ImageAddr,
			img.ImageSize,
			img.DebugID,
			orDash(img.CodeID),
			img.CodeFile,
		)
	}
	w.Flush()

	return buf.String(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatReport(report *Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data) + "\n", nil
}

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) FormatReport(report *Report) (string, error) {
	data, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return string(data), nil
}

// CSVFormatter formats the images as CSV, one row per image.
type CSVFormatter struct{}

func (f *CSVFormatter) FormatReport(report *Report) (string, error) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"image_addr", "image_size", "debug_id", "code_id", "code_file"}); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, img := range report.Images {
		row := []string{
			img.ImageAddr.String(),
			strconv.FormatUint(img.ImageSize, 10),
			img.DebugID.String(),
			img.CodeID,
			img.CodeFile,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.String(), nil
}
