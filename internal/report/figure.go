package report

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

// Figure is anything that can render itself into a PNG file. Figures are
// rendered synchronously on the caller's goroutine: some plotting backends
// are bound to the execution context that created them, and moving the
// render onto a delivery worker would turn a per-artifact problem into a
// process-level one.
type Figure interface {
	RenderPNG(path string) error
}

// FigureFunc adapts a plain function to the Figure interface.
type FigureFunc func(path string) error

func (f FigureFunc) RenderPNG(path string) error { return f(path) }

// ImageFigure renders a decoded image.Image as PNG.
type ImageFigure struct {
	Image image.Image
}

func (f ImageFigure) RenderPNG(path string) error {
	if f.Image == nil {
		return fmt.Errorf("image figure: nil image")
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, f.Image); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return err
	}
	return out.Close()
}

// AffinityError marks a figure that refused to render because it was
// invoked on the wrong execution context (for example a renderer bound to
// the goroutine or OS thread that created it). It is a recoverable
// per-figure user error: the report continues without that figure and the
// reason is surfaced in the delivery caption.
type AffinityError struct {
	Reason string
}

func (e *AffinityError) Error() string {
	if e.Reason == "" {
		return "figure rendered outside its required execution context"
	}
	return e.Reason
}
