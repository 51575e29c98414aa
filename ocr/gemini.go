package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"
)

// ErrConfiguration indicates the recognition service credential is missing.
var ErrConfiguration = errors.New("configuration error")

// ErrRecognition indicates the recognition service failed or returned no text.
var ErrRecognition = errors.New("recognition error")

// DefaultPrompt is the fixed transcription instruction sent with every image.
const DefaultPrompt = "Extract all text contained in this image. " +
	"Preserve line breaks and paragraph structure, and transcribe the content completely and accurately."

// Gemini recognizes text in images with a Gemini vision model.
type Gemini struct {
	model  llms.Model
	name   string
	prompt string
	logger *zap.Logger
}

// NewGemini creates a Gemini engine. apiKey must hold the recognition
// service credential; promptSuffix, if non-empty, is appended to the fixed
// instruction on its own line.
func NewGemini(ctx context.Context, apiKey, model, promptSuffix string, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: environment variable GOOGLE_API_KEY is not set", ErrConfiguration)
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		model:  llm,
		name:   model,
		prompt: BuildPrompt(promptSuffix),
		logger: logger,
	}, nil
}

// BuildPrompt returns the fixed instruction with the optional caller-supplied
// suffix appended on its own line.
func BuildPrompt(suffix string) string {
	if suffix == "" {
		return DefaultPrompt
	}
	return DefaultPrompt + "\n" + suffix
}

// Prompt returns the full instruction sent with each image.
func (g *Gemini) Prompt() string {
	return g.prompt
}

// ExtractText sends one image to the vision model and returns the raw
// transcription. No retry and no local post-processing.
func (g *Gemini) ExtractText(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(imageMIME(imagePath), data),
				llms.TextPart(g.prompt),
			},
		},
	}

	resp, err := g.model.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRecognition, filepath.Base(imagePath), err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", fmt.Errorf("%w: model returned no text for %s", ErrRecognition, filepath.Base(imagePath))
	}

	text := resp.Choices[0].Content
	g.logger.Info("recognized image",
		zap.String("model", g.name),
		zap.String("file", filepath.Base(imagePath)),
		zap.Int("chars", len(text)))
	return text, nil
}

func imageMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
