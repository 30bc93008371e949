// Package screenshot writes captured frames to PNG files.
package screenshot

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Writer saves RGBA8 read-backs. A path ending in .png is overwritten on
// every capture; any other path is a directory that receives one
// timestamped file per capture.
type Writer struct {
	path   string
	prefix string
	now    func() time.Time
}

// NewWriter returns a writer for path.
func NewWriter(path string) *Writer {
	return &Writer{path: path, prefix: "screenshot", now: time.Now}
}

// Path returns the configured destination.
func (w *Writer) Path() string {
	return w.path
}

// Filename returns where the next capture will be written.
func (w *Writer) Filename() string {
	if strings.EqualFold(filepath.Ext(w.path), ".png") {
		return w.path
	}
	name := fmt.Sprintf("%s_%s.png", w.prefix, w.now().Format("2006-01-02_15-04-05"))
	return filepath.Join(w.path, name)
}

// Flip converts bottom-row-first pixels into a top-left origin image.
func Flip(pixels []byte, width, height int) (*image.RGBA, error) {
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * row
		copy(img.Pix[y*img.Stride:y*img.Stride+row], pixels[src:src+row])
	}
	return img, nil
}

// Save flips pixels and writes them as PNG, returning the file name.
func (w *Writer) Save(pixels []byte, width, height int) (string, error) {
	img, err := Flip(pixels, width, height)
	if err != nil {
		return "", err
	}

	filename := w.Filename()
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", filename, err)
	}
	return filename, nil
}
