package ocr

import "context"

// Engine extracts the full text of one image file via a single blocking call.
type Engine interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// Result pairs an image file with the text recognized from it.
type Result struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}
