// Package report writes the outcome of a batch run as YAML for people and as
// Parquet for analysis.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/retoucher/internal/batch"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// RunConfig is the header of a batch report.
type RunConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Operation string `yaml:"operation"`
	Prompt    string `yaml:"prompt"`
	Cancelled bool   `yaml:"cancelled"`
	Timestamp string `yaml:"timestamp"`
}

// Item is one row of the report.
type Item struct {
	Index        int    `yaml:"index" parquet:"index"`
	ID           string `yaml:"id" parquet:"id"`
	Source       string `yaml:"source" parquet:"source"`
	Status       string `yaml:"status" parquet:"status"`
	Output       string `yaml:"output,omitempty" parquet:"output"`
	Width        int    `yaml:"width,omitempty" parquet:"width"`
	Height       int    `yaml:"height,omitempty" parquet:"height"`
	ErrorMessage string `yaml:"error,omitempty" parquet:"error_message"`
}

// Report is the full document written to disk.
type Report struct {
	Config   RunConfig      `yaml:"config"`
	Progress batch.Progress `yaml:"progress"`
	Items    []Item         `yaml:"items"`
}

// New builds a report from the items of a finished run. outputs maps item ids
// to the file each result was written to.
func New(cfg RunConfig, items []models.BatchItem, outputs map[string]string) *Report {
	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}
	r := &Report{Config: cfg, Items: make([]Item, 0, len(items))}
	r.Progress.Total = len(items)
	for i, item := range items {
		row := Item{
			Index:        i,
			ID:           item.ID,
			Status:       string(item.Status),
			Output:       outputs[item.ID],
			ErrorMessage: item.ErrorMessage,
		}
		if item.Source != nil {
			row.Source = item.Source.Name()
		}
		if item.Result != nil {
			row.Width = item.Result.Width()
			row.Height = item.Result.Height()
		}
		switch item.Status {
		case models.BatchDone:
			r.Progress.Done++
		case models.BatchError:
			r.Progress.Failed++
		case models.BatchProcessing:
			r.Progress.Processing++
		default:
			r.Progress.Pending++
		}
		r.Items = append(r.Items, row)
	}
	return r
}

func (r *Report) basename() string {
	return fmt.Sprintf("batch-%s-%s", r.Config.Operation, r.Config.Timestamp)
}

// SaveYAML writes the report to dir and returns the file path.
func (r *Report) SaveYAML(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	path := filepath.Join(dir, r.basename()+".yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	slog.Info("Batch report saved", "path", path)
	return path, nil
}

// SaveParquet writes one row per item to dir and returns the file path.
func (r *Report) SaveParquet(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, r.basename()+".parquet")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[Item](f)
	if _, err := w.Write(r.Items); err != nil {
		return "", fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close parquet writer: %w", err)
	}
	slog.Info("Batch report saved", "path", path, "rows", len(r.Items))
	return path, nil
}

// LoadParquet reads back the rows of a report written by SaveParquet.
func LoadParquet(path string) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Item](pf)
	defer reader.Close()

	var items []Item
	rows := make([]Item, 64)
	for {
		n, err := reader.Read(rows)
		items = append(items, rows[:n]...)
		if err != nil {
			break
		}
	}
	return items, nil
}
