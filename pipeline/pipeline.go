package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rimokem/gemini-ocr/ocr"
	"github.com/rimokem/gemini-ocr/render"
)

// ErrFilesystem indicates the output file or temporary directory could not
// be written.
var ErrFilesystem = errors.New("filesystem error")

// Each text block in the output file starts with this line.
const blockDelimiter = "------------------"

// Rasterizer turns a page range of a PDF into ordered image files.
type Rasterizer interface {
	RenderRange(pdfPath, outDir string, rng render.PageRange) ([]render.RenderedPage, error)
}

// Options control one pipeline run. The zero value uses the conventional
// temporary directory, processes the whole document, derives the output path
// from the PDF name, and removes intermediate images afterwards.
type Options struct {
	// TempDir holds intermediate page images. Defaults to "tmp_ocr_images".
	TempDir string
	// OutputPath is the result text file. Empty derives "<pdf-stem>_ocr.txt"
	// next to the working directory.
	OutputPath string
	// Range selects the pages to process, 0-based. Nil bounds mean the whole
	// document.
	Range render.PageRange
	// KeepImages skips removal of the temporary directory after the run.
	KeepImages bool
}

// Pipeline drives rasterization, recognition, and output assembly for one
// PDF, owning the temporary directory for the duration of the run.
type Pipeline struct {
	rasterizer Rasterizer
	engine     ocr.Engine
	logger     *zap.Logger
	opts       Options
}

func New(rasterizer Rasterizer, engine ocr.Engine, opts Options, logger *zap.Logger) *Pipeline {
	if opts.TempDir == "" {
		opts.TempDir = "tmp_ocr_images"
	}
	return &Pipeline{
		rasterizer: rasterizer,
		engine:     engine,
		logger:     logger,
		opts:       opts,
	}
}

// Run executes the full pipeline for pdfPath. The temporary directory is
// removed on every return path unless KeepImages was set.
func (p *Pipeline) Run(ctx context.Context, pdfPath string) error {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))

	info, err := os.Stat(pdfPath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: PDF file %q not found", render.ErrDocument, pdfPath)
	}

	outputPath := p.opts.OutputPath
	if outputPath == "" {
		outputPath = DeriveOutputPath(pdfPath)
	}

	if err := os.MkdirAll(p.opts.TempDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create temporary directory %s: %v", ErrFilesystem, p.opts.TempDir, err)
	}
	defer func() {
		if p.opts.KeepImages {
			return
		}
		if err := os.RemoveAll(p.opts.TempDir); err != nil {
			logger.Warn("failed to remove temporary directory",
				zap.String("dir", p.opts.TempDir), zap.Error(err))
			return
		}
		logger.Info("removed temporary directory", zap.String("dir", p.opts.TempDir))
	}()

	pages, err := p.rasterizer.RenderRange(pdfPath, p.opts.TempDir, p.opts.Range)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("%w: no page images were produced for %s", render.ErrDocument, pdfPath)
	}

	logger.Info("extracting text from images", zap.Int("images", len(pages)))

	// The rasterizer's returned list is the single source of truth for the
	// recognition stage; files left in the temp dir by earlier runs are
	// never picked up.
	results := make([]ocr.Result, 0, len(pages))
	for i, page := range pages {
		logger.Info("recognition progress",
			zap.Int("index", i+1),
			zap.Int("total", len(pages)),
			zap.String("file", filepath.Base(page.Path)))

		text, err := p.engine.ExtractText(ctx, page.Path)
		if err != nil {
			return err
		}
		results = append(results, ocr.Result{Source: filepath.Base(page.Path), Text: text})
	}

	if err := writeOutput(outputPath, results); err != nil {
		return err
	}

	logger.Info("OCR completed", zap.String("output", outputPath), zap.Int("pages", len(results)))
	return nil
}

// DeriveOutputPath returns the default output filename for a PDF,
// "<base-name-without-extension>_ocr.txt".
func DeriveOutputPath(pdfPath string) string {
	base := filepath.Base(pdfPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_ocr.txt"
}

func writeOutput(path string, results []ocr.Result) error {
	blocks := make([]string, len(results))
	for i, res := range results {
		blocks[i] = blockDelimiter + "\n" + res.Text
	}

	if err := os.WriteFile(path, []byte(strings.Join(blocks, "\n\n")), 0644); err != nil {
		return fmt.Errorf("%w: failed to write output file %s: %v", ErrFilesystem, path, err)
	}
	return nil
}
