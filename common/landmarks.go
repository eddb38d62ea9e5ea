package common

// NumLandmarks is the number of facial points produced by the detector's landmark branch.
const NumLandmarks = 5

// Point represents a 2D point.
type Point struct {
	X, Y float32
}

// Landmarks holds the five facial points in the order the detector emits them:
// left eye, right eye, nose tip, left mouth corner, right mouth corner.
type Landmarks [NumLandmarks]Point

// LeftEye returns the first point.
func (l Landmarks) LeftEye() Point { return l[0] }

// RightEye returns the second point.
func (l Landmarks) RightEye() Point { return l[1] }

// Nose returns the third point.
func (l Landmarks) Nose() Point { return l[2] }

// LeftMouth returns the fourth point.
func (l Landmarks) LeftMouth() Point { return l[3] }

// RightMouth returns the fifth point.
func (l Landmarks) RightMouth() Point { return l[4] }

// Scale multiplies every x by sx and every y by sy.
func (l Landmarks) Scale(sx, sy float32) Landmarks {
	var out Landmarks
	for i, p := range l {
		out[i] = Point{X: p.X * sx, Y: p.Y * sy}
	}
	return out
}

// AsSlice returns landmarks as a flat slice [x0,y0,x1,y1,...].
func (l Landmarks) AsSlice() []float32 {
	out := make([]float32, 0, NumLandmarks*2)
	for _, p := range l {
		out = append(out, p.X, p.Y)
	}
	return out
}

// Pairs returns the points as (x, y) pairs, the form accepted by drawing helpers.
func (l Landmarks) Pairs() [][2]float32 {
	out := make([][2]float32, NumLandmarks)
	for i, p := range l {
		out[i] = [2]float32{p.X, p.Y}
	}
	return out
}
