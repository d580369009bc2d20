package chart

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Thumbnail scales img down to width pixels keeping its aspect ratio.
// Images already narrower than width are returned as is.
func Thumbnail(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}

	height := max(b.Dy()*width/b.Dx(), 1)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)

	return dst
}
