package raster

// ClampCoord pins a coordinate to the nearest edge of [0, dim-1]. Off-image
// reads repeat the edge pixel; they never wrap or mirror.
func ClampCoord(c, dim int) int {
	if c < 0 {
		return 0
	} else if c > dim-1 {
		return dim - 1
	}
	return c
}

// Clamped returns the sample at (x,y), with edge clamping for coords that
// fall outside the image.
func (im *Image) Clamped(x, y, ch int) uint8 {
	return im.Pix[im.Offset(ClampCoord(x, im.W), ClampCoord(y, im.H))+ch]
}

// Neighborhood appends the samples of channel ch from the square of radius
// r around (x,y) to dst, and returns it. Pass dst[:0] from the previous
// call to avoid allocating per pixel. Order is dx-major, then dy.
func (im *Image) Neighborhood(dst []uint8, x, y, r, ch int) []uint8 {
	if r < 0 {
		r = 0
	}
	for dx := -r; dx <= r; dx++ {
		nx := ClampCoord(x+dx, im.W)
		for dy := -r; dy <= r; dy++ {
			ny := ClampCoord(y+dy, im.H)
			dst = append(dst, im.Pix[im.Offset(nx, ny)+ch])
		}
	}
	return dst
}

// Indices into a Region3x3 result.
const (
	Center = iota
	North
	East
	South
	West
	NorthWest
	NorthEast
	SouthEast
	SouthWest
)

// Region3x3 returns the eight neighbours plus center of (x,y), in the
// fixed order [center, N, E, S, W, NW, NE, SE, SW]. y grows downwards,
// so N is y-1.
func (im *Image) Region3x3(x, y, ch int) [9]uint8 {
	return [9]uint8{
		im.Clamped(x, y, ch),
		im.Clamped(x, y-1, ch),
		im.Clamped(x+1, y, ch),
		im.Clamped(x, y+1, ch),
		im.Clamped(x-1, y, ch),
		im.Clamped(x-1, y-1, ch),
		im.Clamped(x+1, y-1, ch),
		im.Clamped(x+1, y+1, ch),
		im.Clamped(x-1, y+1, ch),
	}
}
