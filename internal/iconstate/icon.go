package iconstate

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
)

// Icon images are generated at startup rather than shipped as binary
// assets, mirroring agenttalk/tray.py's create_image_idle/
// create_image_speaking (PIL-drawn circle + 5-bar equalizer, dark-navy/blue
// for idle, dark-green/bright-green for speaking). Size is fixed at 64: the
// original notes smaller icons can fail to load on some platforms.
const iconSize = 64

var (
	idleIconBytes     = renderIcon(color.RGBA{14, 27, 44, 255}, color.RGBA{91, 200, 245, 255}, []float64{0.19, 0.31, 0.47, 0.31, 0.19})
	speakingIconBytes = renderIcon(color.RGBA{10, 44, 28, 255}, color.RGBA{46, 213, 115, 255}, []float64{0.28, 0.47, 0.69, 0.47, 0.28})
)

func renderIcon(bg, bar color.RGBA, heights []float64) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	drawCircle(img, bg)
	drawWaveform(img, bar, heights)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func drawCircle(img *image.RGBA, fill color.RGBA) {
	center := float64(iconSize) / 2
	radius := center - 0.5
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx := float64(x) + 0.5 - center
			dy := float64(y) + 0.5 - center
			if math.Hypot(dx, dy) <= radius {
				img.SetRGBA(x, y, fill)
			}
		}
	}
}

func drawWaveform(img *image.RGBA, fill color.RGBA, heightsFrac []float64) {
	n := len(heightsFrac)
	barW := maxInt(2, round(float64(iconSize)*0.078))
	gap := maxInt(1, round(float64(iconSize)*0.063))
	totalW := n*barW + (n-1)*gap
	x0 := (iconSize - totalW) / 2

	for i, frac := range heightsFrac {
		h := maxInt(2, round(float64(iconSize)*frac))
		x := x0 + i*(barW+gap)
		y := (iconSize - h) / 2
		rect := image.Rect(x, y, x+barW, y+h)
		draw.Draw(img, rect, &image.Uniform{C: fill}, image.Point{}, draw.Src)
	}
}

func round(f float64) int { return int(math.Round(f)) }
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
