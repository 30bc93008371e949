package texture

import (
	"errors"
	"fmt"
	"image"
)

// TGA image types handled by decodeTGA.
const (
	tgaTrueColor    = 2
	tgaTrueColorRLE = 10
)

var errTGATruncated = errors.New("tga: pixel data truncated")

// decodeTGA decodes uncompressed and RLE true-color TGA images with 24 or
// 32 bits per pixel.
func decodeTGA(data []byte) (*image.RGBA, error) {
	if len(data) < 18 {
		return nil, errors.New("tga: header too short")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topToBottom := data[17]&0x20 != 0

	if colorMapType != 0 {
		return nil, errors.New("tga: color-mapped images not supported")
	}
	if imageType != tgaTrueColor && imageType != tgaTrueColorRLE {
		return nil, fmt.Errorf("tga: unsupported image type %d", imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("tga: unsupported bit depth %d", bpp)
	}
	if 18+idLength > len(data) {
		return nil, errTGATruncated
	}

	r := &tgaReader{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		src:         data[18+idLength:],
		bpp:         bpp / 8,
		width:       width,
		height:      height,
		topToBottom: topToBottom,
	}

	var err error
	if imageType == tgaTrueColor {
		err = r.raw(width * height)
	} else {
		err = r.rle()
	}
	if err != nil {
		return nil, err
	}
	return r.img, nil
}

type tgaReader struct {
	img         *image.RGBA
	src         []byte
	pos         int
	pixel       int
	bpp         int
	width       int
	height      int
	topToBottom bool
}

// next reads one BGR(A) pixel from the source.
func (r *tgaReader) next() ([4]byte, error) {
	if r.pos+r.bpp > len(r.src) {
		return [4]byte{}, errTGATruncated
	}
	p := r.src[r.pos : r.pos+r.bpp]
	r.pos += r.bpp
	c := [4]byte{p[2], p[1], p[0], 255}
	if r.bpp == 4 {
		c[3] = p[3]
	}
	return c, nil
}

// put stores c at the current pixel and advances. Bottom-up images are
// flipped so row 0 is the top of the picture.
func (r *tgaReader) put(c [4]byte) {
	x := r.pixel % r.width
	y := r.pixel / r.width
	if !r.topToBottom {
		y = r.height - 1 - y
	}
	copy(r.img.Pix[r.img.PixOffset(x, y):], c[:])
	r.pixel++
}

func (r *tgaReader) raw(n int) error {
	total := r.width * r.height
	for i := 0; i < n && r.pixel < total; i++ {
		c, err := r.next()
		if err != nil {
			return err
		}
		r.put(c)
	}
	return nil
}

func (r *tgaReader) rle() error {
	total := r.width * r.height
	for r.pixel < total {
		if r.pos >= len(r.src) {
			return errTGATruncated
		}
		header := r.src[r.pos]
		r.pos++
		count := int(header&0x7f) + 1

		if header&0x80 == 0 {
			if err := r.raw(count); err != nil {
				return err
			}
			continue
		}
		c, err := r.next()
		if err != nil {
			return err
		}
		for i := 0; i < count && r.pixel < total; i++ {
			r.put(c)
		}
	}
	return nil
}
