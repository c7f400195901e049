package avatar

import (
	"bytes"
	"crypto/sha256"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

const (
	cells    = 5
	cellSize = 48
)

// RenderPNG draws a deterministic identicon for the seed+style pair.
// The same pair always yields the same image, so clients can cache by URL.
func RenderPNG(seed, style string) ([]byte, error) {
	sum := sha256.Sum256([]byte(style + ":" + seed))

	fg := color.RGBA{sum[0]%156 + 60, sum[1]%156 + 60, sum[2]%156 + 60, 255}
	bg := color.RGBA{240, 242, 245, 255}
	if style == "dark" {
		bg = color.RGBA{32, 34, 40, 255}
	}

	size := cells * cellSize
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	// Mirror the left half onto the right so the figure stays symmetric.
	for y := 0; y < cells; y++ {
		for x := 0; x <= cells/2; x++ {
			bit := sum[3+(y*(cells/2+1)+x)%28]
			if bit%2 == 0 {
				continue
			}
			fill(img, x, y, fg)
			fill(img, cells-1-x, y, fg)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fill(img *image.RGBA, cx, cy int, c color.RGBA) {
	rect := image.Rect(cx*cellSize, cy*cellSize, (cx+1)*cellSize, (cy+1)*cellSize)
	draw.Draw(img, rect, &image.Uniform{c}, image.Point{}, draw.Src)
}
