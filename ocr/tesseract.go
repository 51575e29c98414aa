package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// Tesseract recognizes text locally with the Tesseract engine. It needs no
// credential and no network access.
type Tesseract struct {
	logger *zap.Logger
}

func NewTesseract(logger *zap.Logger) *Tesseract {
	return &Tesseract{logger: logger}
}

// ExtractText runs Tesseract OCR over one image file.
func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	// LSTM engine with fully automatic page segmentation and preserved
	// interword spacing gives the best layout fidelity.
	client.SetVariable("tessedit_ocr_engine_mode", "1")
	client.SetVariable("tessedit_pageseg_mode", "3")
	client.SetVariable("preserve_interword_spaces", "1")

	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("failed to set image for OCR: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRecognition, filepath.Base(imagePath), err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: tesseract returned no text for %s", ErrRecognition, filepath.Base(imagePath))
	}

	t.logger.Info("recognized image",
		zap.String("engine", "tesseract"),
		zap.String("file", filepath.Base(imagePath)),
		zap.Int("chars", len(text)))
	return text, nil
}
