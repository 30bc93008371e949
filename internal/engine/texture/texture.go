// Package texture decodes image files and uploads them as GPU textures.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Faultbox/lumen/internal/engine/gpu"
)

// ErrUnsupported is returned for data no registered decoder recognizes.
var ErrUnsupported = errors.New("texture: unsupported image format")

// Decode decodes PNG, JPEG, BMP, TIFF, WebP or TGA data into RGBA.
// name is only used to recognize TGA, which has no magic number.
func Decode(data []byte, name string) (*image.RGBA, error) {
	if strings.EqualFold(filepath.Ext(name), ".tga") {
		return decodeTGA(data)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			if rgba, tgaErr := decodeTGA(data); tgaErr == nil {
				return rgba, nil
			}
			return nil, fmt.Errorf("%s: %w", name, ErrUnsupported)
		}
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return ToRGBA(img), nil
}

// LoadFile reads and decodes an image file.
func LoadFile(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, path)
}

// ToRGBA returns img as a tightly packed *image.RGBA with origin (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Upload creates a mipmapped RGBA8 texture from img.
func Upload(dev gpu.Device, img *image.RGBA, sampler gpu.SamplerDesc) (*gpu.Texture, error) {
	b := img.Bounds()
	return gpu.NewTexture(dev, gpu.TextureDesc{
		Width:   b.Dx(),
		Height:  b.Dy(),
		Format:  gpu.FormatRGBA8,
		Sampler: sampler,
		Mipmaps: true,
	}, img.Pix)
}

// LoadTexture decodes the file at path and uploads it with the default sampler.
func LoadTexture(dev gpu.Device, path string) (*gpu.Texture, error) {
	img, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Upload(dev, img, gpu.DefaultSampler())
}
