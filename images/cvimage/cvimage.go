// Package cvimage bridges OpenCV matrices and the images package.
package cvimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-face/common"
	"github.com/nvr-ai/go-face/images"
)

var (
	// BoxColor is the color used to outline detections.
	BoxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	// PointColor is the color used for landmark points.
	PointColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// ReadImage loads an image file with OpenCV and returns it as an image.Image.
//
// Arguments:
//   - path: The path of the image file.
//
// Returns:
//   - image.Image: The decoded image in RGB order.
//   - error: An error if the file cannot be read or decoded.
func ReadImage(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.Errorf("failed to read image: %s", path)
	}

	return MatToImage(mat)
}

// MatToImage converts a BGR gocv.Mat into an image.Image.
//
// Arguments:
//   - mat: The source Mat. It is not closed.
//
// Returns:
//   - image.Image: The converted image.
//   - error: An error if the Mat is empty or of an unsupported type.
func MatToImage(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, errors.New("empty mat")
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert mat to image")
	}

	return img, nil
}

// ImageToMat converts an image.Image into a BGR gocv.Mat. The caller must close the result.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to convert image to mat")
	}
	return mat, nil
}

// DrawBox outlines rect on mat and writes label above it when label is not empty.
func DrawBox(mat *gocv.Mat, rect images.Rect, label string) {
	r := rect.ToRectangle()
	gocv.Rectangle(mat, r, BoxColor, 2)
	if label != "" {
		gocv.PutText(mat, label, image.Pt(r.Min.X, max(r.Min.Y-4, 0)), gocv.FontHersheyPlain, 1.2, BoxColor, 1)
	}
}

// DrawPoints marks each (x, y) pair of points on mat.
func DrawPoints(mat *gocv.Mat, points [][2]float32) {
	for _, p := range points {
		gocv.Circle(mat, image.Pt(int(p[0]), int(p[1])), 2, PointColor, -1)
	}
}

// WriteImage encodes mat to path. The format is chosen from the file extension.
func WriteImage(path string, mat gocv.Mat) error {
	if ok := gocv.IMWrite(path, mat); !ok {
		return errors.Errorf("failed to write image: %s", path)
	}
	return nil
}

// WarpToReference aligns a face so that its eyes and nose land on the matching
// reference points, and crops the result to width x height.
//
// The affine transform is solved from the first three points (left eye, right
// eye, nose) of each set.
//
// Arguments:
//   - src: The source image. It is not closed.
//   - face: The face's five points in src pixel coordinates.
//   - reference: The five target points in output pixel coordinates.
//   - width: The output width.
//   - height: The output height.
//
// Returns:
//   - gocv.Mat: The aligned crop. The caller must close it.
//   - error: An error if src is empty.
func WarpToReference(src gocv.Mat, face, reference common.Landmarks, width, height int) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), errors.New("empty mat")
	}

	from := gocv.NewPoint2fVectorFromPoints(trianglePoints(face))
	defer from.Close()
	to := gocv.NewPoint2fVectorFromPoints(trianglePoints(reference))
	defer to.Close()

	transform := gocv.GetAffineTransform2f(from, to)
	defer transform.Close()

	dst := gocv.NewMat()
	gocv.WarpAffine(src, &dst, transform, image.Pt(width, height))

	return dst, nil
}

func trianglePoints(l common.Landmarks) []gocv.Point2f {
	return []gocv.Point2f{
		{X: l[0].X, Y: l[0].Y},
		{X: l[1].X, Y: l[1].Y},
		{X: l[2].X, Y: l[2].Y},
	}
}
