// Package export writes the finished dataset as CSV, JSON, a self-contained
// HTML map and a static site bundle.
package export

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
	"github.com/couchcryptid/climate-normals-etl/internal/fileutil"
)

// Options names the artifacts. Relative paths are resolved against OutputDir.
// An empty SiteDir disables the site bundle.
type Options struct {
	OutputDir string
	CSVName   string
	JSONName  string
	HTMLName  string
	SiteDir   string
	Filters   Filters
}

// Exporter writes all artifacts for a dataset.
type Exporter struct {
	opts   Options
	logger *slog.Logger
}

// NewExporter creates an Exporter.
func NewExporter(opts Options, logger *slog.Logger) *Exporter {
	return &Exporter{opts: opts, logger: logger}
}

type artifact struct {
	path  string
	write func(io.Writer) error
}

// Load writes every artifact and returns their paths. An empty dataset is
// rejected with domain.ErrNoData before anything is written. All artifacts are
// rendered to temporary files first and only replace the previous outputs
// once every render succeeded and ctx is still live. On error no paths are
// returned and earlier outputs stay as they were.
func (e *Exporter) Load(ctx context.Context, ds domain.Dataset) ([]string, error) {
	if len(ds.Cities) == 0 {
		return nil, domain.ErrNoData
	}

	artifacts := []artifact{
		{e.resolve(e.opts.CSVName), func(w io.Writer) error { return WriteCSV(w, ds.Cities) }},
		{e.resolve(e.opts.JSONName), func(w io.Writer) error { return WriteJSON(w, ds.Cities) }},
		{e.resolve(e.opts.HTMLName), func(w io.Writer) error { return RenderMap(w, ds, e.opts.Filters) }},
	}
	if e.opts.SiteDir != "" {
		site := e.resolve(e.opts.SiteDir)
		dataPath := "data/" + filepath.Base(e.opts.JSONName)
		artifacts = append(artifacts,
			artifact{filepath.Join(site, "index.html"), func(w io.Writer) error { return RenderSite(w, dataPath, e.opts.Filters) }},
			artifact{filepath.Join(site, filepath.FromSlash(dataPath)), func(w io.Writer) error { return WriteJSON(w, ds.Cities) }},
		)
	}

	var batch fileutil.Batch
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			batch.Abort()
			return nil, err
		}
		if err := batch.Stage(a.path, a.write); err != nil {
			batch.Abort()
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		batch.Abort()
		return nil, err
	}

	paths := batch.Paths()
	if err := batch.Commit(); err != nil {
		return nil, err
	}
	for _, p := range paths {
		e.logger.Debug("artifact written", "path", p)
	}
	return paths, nil
}

func (e *Exporter) resolve(name string) string {
	if filepath.IsAbs(name) || e.opts.OutputDir == "" {
		return name
	}
	return filepath.Join(e.opts.OutputDir, name)
}
