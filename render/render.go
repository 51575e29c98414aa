package render

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// ErrDocument indicates the PDF could not be opened or a requested page
// index is outside the document.
var ErrDocument = errors.New("document error")

// MuPDF renders at 72 DPI for a 1:1 scale, so a zoom factor z maps to 72*z DPI.
const baseDPI = 72

const jpegQuality = 90

// PageRange selects an inclusive span of 0-based page indices. A nil bound
// resolves to the start or end of the document.
type PageRange struct {
	First *int
	Last  *int
}

func (r PageRange) resolve(pageCount int) (first, last int, err error) {
	first = 0
	if r.First != nil {
		first = *r.First
	}
	last = pageCount - 1
	if r.Last != nil {
		last = *r.Last
	}
	if first < 0 || last >= pageCount || first > last {
		return 0, 0, fmt.Errorf("%w: page range %d-%d outside document with %d pages",
			ErrDocument, first+1, last+1, pageCount)
	}
	return first, last, nil
}

// RenderedPage is one page written to disk by the rasterizer.
type RenderedPage struct {
	PageIndex int
	Path      string
}

type Rasterizer struct {
	zoom   float64
	format string
	logger *zap.Logger
}

// NewRasterizer creates a rasterizer producing images scaled by zoom in the
// given format ("png" or "jpeg").
func NewRasterizer(zoom float64, format string, logger *zap.Logger) (*Rasterizer, error) {
	if zoom <= 0 {
		return nil, fmt.Errorf("zoom factor must be positive, got %g", zoom)
	}
	switch format {
	case "png", "jpeg", "jpg":
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	return &Rasterizer{
		zoom:   zoom,
		format: format,
		logger: logger,
	}, nil
}

// RenderRange rasterizes every page of the PDF within rng into outDir, one
// image file per page. Filenames embed the PDF's base name and a zero-padded
// 1-based page number, so lexicographic order equals page order. The returned
// slice is in ascending page order and is the authoritative list of produced
// files.
func (r *Rasterizer) RenderRange(pdfPath, outDir string, rng PageRange) ([]RenderedPage, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF %s: %v", ErrDocument, pdfPath, err)
	}
	defer doc.Close()

	first, last, err := rng.resolve(doc.NumPage())
	if err != nil {
		return nil, err
	}
	total := last - first + 1
	stem := pdfStem(pdfPath)

	r.logger.Info("converting PDF pages to images",
		zap.String("pdf", pdfPath),
		zap.Int("pages", total),
		zap.Float64("zoom", r.zoom))

	pages := make([]RenderedPage, 0, total)
	for pageNum := first; pageNum <= last; pageNum++ {
		img, err := doc.ImageDPI(pageNum, baseDPI*r.zoom)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to render page %d: %v", ErrDocument, pageNum+1, err)
		}

		outPath := filepath.Join(outDir, pageFileName(stem, pageNum, r.format))
		if err := writeImage(outPath, img, r.format); err != nil {
			return nil, err
		}

		r.logger.Info("saved page image",
			zap.Int("page", pageNum-first+1),
			zap.Int("total", total),
			zap.String("file", filepath.Base(outPath)))

		pages = append(pages, RenderedPage{PageIndex: pageNum, Path: outPath})
	}
	return pages, nil
}

func pdfStem(pdfPath string) string {
	base := filepath.Base(pdfPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func pageFileName(stem string, pageIndex int, format string) string {
	return fmt.Sprintf("%s_page_%04d.%s", stem, pageIndex+1, format)
}

func writeImage(path string, img image.Image, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s image %s: %w", format, path, err)
	}
	return nil
}
