package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	baseDir string
	logger  *slog.Logger
}

// NewCSVWriter creates a writer that resolves relative paths under baseDir.
func NewCSVWriter(baseDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		baseDir: baseDir,
		logger:  logger.With(slog.String("component", "csv_writer")),
	}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// Encode writes headers and records to w.
func Encode(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteCSV writes data to a CSV file, replacing any existing file. The
// file is written to a temporary name first and renamed into place.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) (string, error) {
	staged, err := w.Stage(filePath, options)
	if err != nil {
		return "", err
	}
	if err := staged.Commit(); err != nil {
		staged.Discard()
		return "", err
	}
	return staged.Path, nil
}

// StagedFile is a fully written CSV that is not yet visible at Path.
type StagedFile struct {
	Path    string
	tmpPath string
}

// Stage writes the CSV next to its destination under a hidden temporary
// name. Nothing appears at the destination until Commit.
func (w *CSVWriter) Stage(filePath string, options WriteOptions) (*StagedFile, error) {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	staged := &StagedFile{Path: fullPath, tmpPath: tmp.Name()}

	if err := Encode(tmp, options); err != nil {
		tmp.Close()
		staged.Discard()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		staged.Discard()
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(staged.tmpPath, 0644); err != nil {
		staged.Discard()
		return nil, fmt.Errorf("failed to set permissions: %w", err)
	}

	return staged, nil
}

// Commit renames the staged file into place.
func (f *StagedFile) Commit() error {
	if err := os.Rename(f.tmpPath, f.Path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	f.tmpPath = ""
	return nil
}

// Discard removes the temporary file. It is a no-op after Commit.
func (f *StagedFile) Discard() {
	if f.tmpPath != "" {
		_ = os.Remove(f.tmpPath)
		f.tmpPath = ""
	}
}

// resolvePath joins relative paths onto the base directory.
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.baseDir == "" {
		return filePath
	}
	return filepath.Join(w.baseDir, filePath)
}
