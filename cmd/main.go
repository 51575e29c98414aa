package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/rimokem/gemini-ocr/config"
	"github.com/rimokem/gemini-ocr/ocr"
	"github.com/rimokem/gemini-ocr/pipeline"
	"github.com/rimokem/gemini-ocr/render"
)

func main() {
	os.Exit(run())
}

func run() int {
	// =========
	// Flags
	// =========
	var (
		firstPage    = flag.Int("first-page", 0, "first page to process, 1-based (default: start of document)")
		lastPage     = flag.Int("last-page", 0, "last page to process, 1-based (default: end of document)")
		output       = flag.String("output", "", "output text file path (default: <pdf-name>_ocr.txt)")
		keepImages   = flag.Bool("keep-images", false, "keep intermediate page images after the run")
		zoom         = flag.Float64("zoom", 0, "page scale factor for rendering (default: 2.0)")
		promptSuffix = flag.String("prompt", "", "extra text appended to the recognition prompt")
		engine       = flag.String("engine", "", "recognition engine: gemini or tesseract (default: gemini)")
		format       = flag.String("format", "", "intermediate image format: png or jpeg (default: png)")
		configPath   = flag.String("config", "", "path to a YAML config file")
		cachePath    = flag.String("cache", "", "path to a recognition-result cache database")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] <pdf-file>\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 1
	}
	pdfPath := flag.Arg(0)

	// =========
	// Config
	// =========
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	if *zoom != 0 {
		cfg.Zoom = *zoom
	}
	if *engine != "" {
		cfg.Engine = *engine
	}
	if *format != "" {
		cfg.Format = *format
	}
	if *promptSuffix != "" {
		cfg.PromptSuffix = *promptSuffix
	}
	if *cachePath != "" {
		cfg.CachePath = *cachePath
	}

	// =========
	// Logging
	// =========
	logger, err := zap.NewProduction()
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return 1
	}
	defer logger.Sync()

	ctx := context.Background()

	// =========
	// Recognition engine
	// =========
	var recognizer ocr.Engine
	switch cfg.Engine {
	case "gemini":
		recognizer, err = ocr.NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.PromptSuffix, logger)
		if err != nil {
			logger.Error("failed to create recognition engine", zap.Error(err))
			return 1
		}
	case "tesseract":
		recognizer = ocr.NewTesseract(logger)
	default:
		logger.Error("unsupported recognition engine", zap.String("engine", cfg.Engine))
		return 1
	}

	if cfg.CachePath != "" {
		db, err := ocr.OpenCache(cfg.CachePath)
		if err != nil {
			logger.Error("failed to open result cache", zap.Error(err))
			return 1
		}
		defer db.Close()

		namespace := cfg.Engine + "/" + cfg.Model + "/" + ocr.BuildPrompt(cfg.PromptSuffix)
		recognizer = ocr.NewCachedEngine(db, recognizer, namespace, logger)
	}

	// =========
	// Rasterizer
	// =========
	rasterizer, err := render.NewRasterizer(cfg.Zoom, cfg.Format, logger)
	if err != nil {
		logger.Error("failed to create rasterizer", zap.Error(err))
		return 1
	}

	// =========
	// Pipeline
	// =========
	p := pipeline.New(rasterizer, recognizer, pipeline.Options{
		TempDir:    cfg.TempDir,
		OutputPath: *output,
		Range:      pageRange(*firstPage, *lastPage),
		KeepImages: *keepImages,
	}, logger)

	if err := p.Run(ctx, pdfPath); err != nil {
		logger.Error("OCR pipeline failed", zap.Error(err))
		return 1
	}
	return 0
}

// pageRange converts 1-based CLI page numbers to the 0-based internal range.
// A zero flag value means the bound was not given.
func pageRange(first, last int) render.PageRange {
	var rng render.PageRange
	if first > 0 {
		f := first - 1
		rng.First = &f
	}
	if last > 0 {
		l := last - 1
		rng.Last = &l
	}
	return rng
}
