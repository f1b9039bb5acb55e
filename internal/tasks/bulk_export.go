package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/wrapped/internal/formatter"
	"github.com/desertthunder/wrapped/internal/models"
)

// BulkExportOpts contains configuration for bulk wrap exports.
type BulkExportOpts struct {
	Format     formatter.Format // Export format: json, csv, markdown, txt
	OutputDir  string           // Base output directory (default: wrapped_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 5)
	ProfileID  string           // Recorded in the manifest
}

// WrapExportResult is the outcome of exporting a single wrap.
type WrapExportResult struct {
	Wrap  *models.Wrap
	File  string
	Error error
}

// BulkExportResult summarizes a bulk export.
type BulkExportResult struct {
	Total           int
	Succeeded       int
	Failed          int
	OutputDirectory string
	ManifestPath    string
	Results         []WrapExportResult // In input order
}

type exportJob struct {
	index int
	wrap  *models.Wrap
}

// BulkExport writes every wrap to opts.OutputDir concurrently and generates a manifest file summarizing the results.
//
// Individual failures are recorded in the result and do not stop the export.
func (e *WrapEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	wraps []*models.Wrap,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("wrapped_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		Total:           len(wraps),
		OutputDirectory: opts.OutputDir,
		Results:         make([]WrapExportResult, len(wraps)),
	}

	jobs := make(chan exportJob)
	type done struct {
		index int
		res   WrapExportResult
	}
	results := make(chan done, len(wraps))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				path, err := formatter.WriteExport(job.wrap, opts.Format, opts.OutputDir)
				results <- done{index: job.index, res: WrapExportResult{Wrap: job.wrap, File: path, Error: err}}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, w := range wraps {
			select {
			case <-ctx.Done():
				return
			case jobs <- exportJob{index: i, wrap: w}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for d := range results {
		completed++
		result.Results[d.index] = d.res
		if d.res.Error != nil {
			result.Failed++
			e.logger.Warn("wrap export failed", "wrap", d.res.Wrap.ID(), "error", d.res.Error)
			e.sendProgress(prog, exportFailedUpdate(completed, len(wraps), d.res.Wrap, d.res.Error))
			continue
		}
		result.Succeeded++
		e.sendProgress(prog, exportCompletedUpdate(completed, len(wraps), d.res.Wrap, d.res.File))
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export cancelled after %d of %d wraps: %w", completed, len(wraps), err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(manifest(result, opts), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func manifest(r *BulkExportResult, opts BulkExportOpts) *formatter.Manifest {
	m := &formatter.Manifest{
		ExportedAt: time.Now().UTC(),
		ProfileID:  opts.ProfileID,
		Format:     opts.Format,
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Entries:    make([]formatter.ManifestEntry, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		if res.Wrap == nil {
			continue
		}
		entry := formatter.ManifestEntry{WrapID: res.Wrap.ID(), Length: res.Wrap.Length(), File: res.File}
		if res.Error != nil {
			entry.Error = res.Error.Error()
		}
		m.Entries = append(m.Entries, entry)
	}
	return m
}
