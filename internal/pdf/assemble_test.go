package pdf

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.Black)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestAssembleWritesDocument(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "fig.png")
	writeTestPNG(t, img, 640, 480)

	out := filepath.Join(dir, "report.pdf")
	if err := Assemble(out, "Run 7", "residual: 1e-9\nconverged", []string{img}); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	fi, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if fi.Size() == 0 {
		t.Fatalf("empty pdf written")
	}
}

func TestAssembleToleratesMissingImages(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.pdf")

	err := Assemble(out, "Run 8", "", []string{filepath.Join(dir, "gone.png")})
	if err != nil {
		t.Fatalf("missing image must degrade, not fail: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("stat output: %v", err)
	}
}

func TestAssembleToleratesUndecodableImage(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write bad image: %v", err)
	}
	out := filepath.Join(dir, "report.pdf")
	if err := Assemble(out, "Run 9", "text", []string{bad}); err != nil {
		t.Fatalf("undecodable image must degrade, not fail: %v", err)
	}
}
