package facematch

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ChannelOrder is the byte order of the three color channels in an Image.
type ChannelOrder int

const (
	// RGB stores red, green, blue.
	RGB ChannelOrder = iota
	// BGR stores blue, green, red (OpenCV-style detectors).
	BGR
)

func (o ChannelOrder) String() string {
	if o == BGR {
		return "BGR"
	}
	return "RGB"
}

// Image is a decoded 8-bit, 3-channel pixel buffer laid out row by row.
// It is owned by the request that decoded it.
type Image struct {
	Width  int
	Height int
	Order  ChannelOrder
	Pix    []uint8 // len = Width*Height*3
}

// NewImage allocates a zeroed image.
func NewImage(width, height int, order ChannelOrder) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Order:  order,
		Pix:    make([]uint8, width*height*3),
	}
}

// DecodeImage decodes JPEG, PNG, GIF, BMP or WebP bytes into an RGB Image.
func DecodeImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode image: %w", errEmptyImage)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage copies any image.Image into an RGB Image, dropping alpha.
func FromImage(img image.Image) *Image {
	b := img.Bounds()
	out := NewImage(b.Dx(), b.Dy(), RGB)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			out.Pix[i] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
			i += 3
		}
	}
	return out
}

// Bounds returns the image rectangle anchored at the origin.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// Shape describes the buffer as height x width x channels.
func (m *Image) Shape() string {
	if m == nil {
		return "none"
	}
	return fmt.Sprintf("(%d, %d, 3)", m.Height, m.Width)
}

// Convert returns the image in the requested channel order. The receiver is
// returned unchanged when it already has that order.
func (m *Image) Convert(order ChannelOrder) *Image {
	if m.Order == order {
		return m
	}
	out := &Image{Width: m.Width, Height: m.Height, Order: order, Pix: make([]uint8, len(m.Pix))}
	for i := 0; i+2 < len(m.Pix); i += 3 {
		out.Pix[i] = m.Pix[i+2]
		out.Pix[i+1] = m.Pix[i+1]
		out.Pix[i+2] = m.Pix[i]
	}
	return out
}

// Crop copies the pixels inside r. r must lie within the image bounds.
func (m *Image) Crop(r image.Rectangle) *Image {
	out := NewImage(r.Dx(), r.Dy(), m.Order)
	rowBytes := r.Dx() * 3
	for y := 0; y < r.Dy(); y++ {
		src := ((r.Min.Y+y)*m.Width + r.Min.X) * 3
		copy(out.Pix[y*rowBytes:(y+1)*rowBytes], m.Pix[src:src+rowBytes])
	}
	return out
}

// RGBA converts the buffer to an *image.RGBA, honoring the channel order.
func (m *Image) RGBA() *image.RGBA {
	src := m.Convert(RGB)
	out := image.NewRGBA(m.Bounds())
	for p, i := 0, 0; i+2 < len(src.Pix); p, i = p+4, i+3 {
		out.Pix[p] = src.Pix[i]
		out.Pix[p+1] = src.Pix[i+1]
		out.Pix[p+2] = src.Pix[i+2]
		out.Pix[p+3] = 0xFF
	}
	return out
}

// EncodeJPEG encodes the image as JPEG.
func (m *Image) EncodeJPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, m.RGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
