package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/rimokem/gemini-ocr/render"
)

// fakeRasterizer writes one placeholder file per page, the way the real
// rasterizer does, and returns them in page order.
type fakeRasterizer struct {
	pages int
	err   error
}

func (f *fakeRasterizer) RenderRange(pdfPath, outDir string, rng render.PageRange) ([]render.RenderedPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	out := make([]render.RenderedPage, 0, f.pages)
	for i := 0; i < f.pages; i++ {
		path := filepath.Join(outDir, fmt.Sprintf("doc_page_%04d.png", i+1))
		if err := os.WriteFile(path, []byte("img"), 0644); err != nil {
			return nil, err
		}
		out = append(out, render.RenderedPage{PageIndex: i, Path: path})
	}
	return out, nil
}

// echoEngine returns a deterministic text per image filename.
type echoEngine struct {
	failOn string
	calls  []string
}

func (e *echoEngine) ExtractText(ctx context.Context, imagePath string) (string, error) {
	base := filepath.Base(imagePath)
	e.calls = append(e.calls, base)
	if base == e.failOn {
		return "", errors.New("recognition failed")
	}
	return "text of " + base, nil
}

func writePDF(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7"), 0644); err != nil {
		t.Fatalf("failed to write test pdf: %v", err)
	}
	return path
}

func TestRunAssemblesBlocksInPageOrder(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writePDF(t, dir)
	outPath := filepath.Join(dir, "out.txt")
	tempDir := filepath.Join(dir, "tmp_ocr_images")

	engine := &echoEngine{}
	p := New(&fakeRasterizer{pages: 3}, engine, Options{
		TempDir:    tempDir,
		OutputPath: outPath,
	}, zap.NewNop())

	if err := p.Run(context.Background(), pdfPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	want := strings.Join([]string{
		"------------------\ntext of doc_page_0001.png",
		"------------------\ntext of doc_page_0002.png",
		"------------------\ntext of doc_page_0003.png",
	}, "\n\n")
	if string(data) != want {
		t.Errorf("unexpected output:\n%s", data)
	}

	wantCalls := []string{"doc_page_0001.png", "doc_page_0002.png", "doc_page_0003.png"}
	if len(engine.calls) != len(wantCalls) {
		t.Fatalf("expected %d engine calls, got %d", len(wantCalls), len(engine.calls))
	}
	for i, call := range engine.calls {
		if call != wantCalls[i] {
			t.Errorf("call %d: expected %s, got %s", i, wantCalls[i], call)
		}
	}
}

func TestRunRemovesTempDirOnSuccess(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writePDF(t, dir)
	tempDir := filepath.Join(dir, "tmp_ocr_images")

	p := New(&fakeRasterizer{pages: 1}, &echoEngine{}, Options{
		TempDir:    tempDir,
		OutputPath: filepath.Join(dir, "out.txt"),
	}, zap.NewNop())

	if err := p.Run(context.Background(), pdfPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Errorf("expected temp dir removed, stat err: %v", err)
	}
}

func TestRunRemovesTempDirOnRecognitionFailure(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writePDF(t, dir)
	tempDir := filepath.Join(dir, "tmp_ocr_images")
	outPath := filepath.Join(dir, "out.txt")

	p := New(&fakeRasterizer{pages: 2}, &echoEngine{failOn: "doc_page_0002.png"}, Options{
		TempDir:    tempDir,
		OutputPath: outPath,
	}, zap.NewNop())

	if err := p.Run(context.Background(), pdfPath); err == nil {
		t.Fatal("expected error from failing engine")
	}
	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Errorf("expected temp dir removed after failure, stat err: %v", err)
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Error("no output file may be written on failure")
	}
}

func TestRunKeepsTempDirWhenRequested(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writePDF(t, dir)
	tempDir := filepath.Join(dir, "tmp_ocr_images")

	p := New(&fakeRasterizer{pages: 1}, &echoEngine{}, Options{
		TempDir:    tempDir,
		OutputPath: filepath.Join(dir, "out.txt"),
		KeepImages: true,
	}, zap.NewNop())

	if err := p.Run(context.Background(), pdfPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("expected temp dir retained: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 retained image, got %d", len(entries))
	}
}

func TestRunMissingPDFFailsBeforeTempDir(t *testing.T) {
	dir := t.TempDir()
	tempDir := filepath.Join(dir, "tmp_ocr_images")

	p := New(&fakeRasterizer{pages: 1}, &echoEngine{}, Options{
		TempDir:    tempDir,
		OutputPath: filepath.Join(dir, "out.txt"),
	}, zap.NewNop())

	err := p.Run(context.Background(), filepath.Join(dir, "missing.pdf"))
	if !errors.Is(err, render.ErrDocument) {
		t.Fatalf("expected ErrDocument, got %v", err)
	}
	if _, statErr := os.Stat(tempDir); !os.IsNotExist(statErr) {
		t.Error("temp dir must not be created for a missing PDF")
	}
}

func TestRunIsIdempotentWithRetention(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writePDF(t, dir)
	outPath := filepath.Join(dir, "out.txt")

	opts := Options{
		TempDir:    filepath.Join(dir, "tmp_ocr_images"),
		OutputPath: outPath,
		KeepImages: true,
	}

	p := New(&fakeRasterizer{pages: 2}, &echoEngine{}, opts, zap.NewNop())
	if err := p.Run(context.Background(), pdfPath); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read first output: %v", err)
	}

	p = New(&fakeRasterizer{pages: 2}, &echoEngine{}, opts, zap.NewNop())
	if err := p.Run(context.Background(), pdfPath); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read second output: %v", err)
	}

	if string(first) != string(second) {
		t.Error("two runs over identical inputs must produce identical output")
	}
}

func TestDeriveOutputPath(t *testing.T) {
	testCases := []struct {
		pdf  string
		want string
	}{
		{"document.pdf", "document_ocr.txt"},
		{"/some/dir/report.pdf", "report_ocr.txt"},
		{"no_extension", "no_extension_ocr.txt"},
	}
	for _, tc := range testCases {
		if got := DeriveOutputPath(tc.pdf); got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.pdf, tc.want, got)
		}
	}
}

func TestRunFailsWhenRasterizerProducesNothing(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writePDF(t, dir)

	p := New(&fakeRasterizer{pages: 0}, &echoEngine{}, Options{
		TempDir:    filepath.Join(dir, "tmp_ocr_images"),
		OutputPath: filepath.Join(dir, "out.txt"),
	}, zap.NewNop())

	if err := p.Run(context.Background(), pdfPath); !errors.Is(err, render.ErrDocument) {
		t.Errorf("expected ErrDocument, got %v", err)
	}
}
