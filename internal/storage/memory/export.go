// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunExport is the root JSON structure of an exported run
type RunExport struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	StartedAt   time.Time      `json:"startedAt"`
	EndedAt     *time.Time     `json:"endedAt,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
	SampleCount int            `json:"sampleCount"`
	PathLength  float64        `json:"pathLength"`
	PathWKT     string         `json:"pathWkt"`
	// Samples are [seq, x, y, heading, targetX, targetY]
	Samples [][]any `json:"samples"`
}

func buildExport(rec *RunRecord) RunExport {
	r := rec.Run
	export := RunExport{
		ID:          r.ID,
		Name:        r.Name,
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
		Settings:    r.Settings,
		SampleCount: r.SampleCount,
		PathLength:  r.PathLength,
		PathWKT:     r.PathWKT,
		Samples:     make([][]any, 0, len(rec.Samples)),
	}
	for _, s := range rec.Samples {
		export.Samples = append(export.Samples, []any{
			s.Seq, s.X, s.Y, s.Heading, s.TargetX, s.TargetY,
		})
	}
	return export
}

// exportFileName returns e.g. "demo_run_20240301_100000.json.gz".
func exportFileName(rec *RunRecord, compress bool) string {
	name := rec.Run.Name
	if name == "" {
		name = fmt.Sprintf("run%d", rec.Run.ID)
	}
	name = strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(name)
	filename := fmt.Sprintf("%s_%s.json", name, rec.Run.StartedAt.Format("20060102_150405"))
	if compress {
		filename += ".gz"
	}
	return filename
}

// exportJSON writes the run to a JSON file in cfg.OutputDir and returns its
// path.
func exportJSON(cfg Config, rec *RunRecord) (string, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(cfg.OutputDir, exportFileName(rec, cfg.CompressOutput))
	export := buildExport(rec)

	var err error
	if cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

func writeJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
