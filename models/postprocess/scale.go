package postprocess

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-face/images"
)

// ScaleToImage maps a box from network-input pixels to original-image pixels.
//
// The box is scaled by (scaleX, scaleY) and then made square around its
// center with an edge equal to the scaled height. The square is clamped so
// that X1 and Y1 are not negative, X2 <= imageW-1 and Y2 <= imageH-1.
//
// Arguments:
//   - box: The box in network-input pixels.
//   - scaleX: The ratio of original width to network input width.
//   - scaleY: The ratio of original height to network input height.
//   - imageW: The original image width.
//   - imageH: The original image height.
//
// Returns:
//   - images.Rect: The clamped square in original-image pixels.
//
// @example
// r := postprocess.ScaleToImage(images.Rect{X1: 10, Y1: 10, X2: 50, Y2: 90}, 2, 2, 640, 480)
// fmt.Println(r) // {0 20 140 180}
func ScaleToImage(box images.Rect, scaleX, scaleY float32, imageW, imageH int) images.Rect {
	scaled := box.Scale(scaleX, scaleY)
	cx, cy := scaled.Center()
	half := scaled.Height() / 2

	return images.Rect{
		X1: math32.Max(cx-half, 0),
		Y1: math32.Max(cy-half, 0),
		X2: math32.Min(cx+half, float32(imageW-1)),
		Y2: math32.Min(cy+half, float32(imageH-1)),
	}
}
