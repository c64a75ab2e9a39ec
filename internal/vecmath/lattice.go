package vecmath

// Vec3 is a point on the integer cubic lattice.
type Vec3 struct {
	X, Y, Z int
}

// Axes lists the six unit steps of the cubic lattice.
var Axes = [6]Vec3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

func V3Add(a, b Vec3) Vec3 {
	return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func V3Sub(a, b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func V3Dot(a, b Vec3) int {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// V3Manhattan is the L1 length of v.
func V3Manhattan(v Vec3) int {
	return abs(v.X) + abs(v.Y) + abs(v.Z)
}

// V3Adjacent reports whether a and b are lattice neighbours.
func V3Adjacent(a, b Vec3) bool {
	return V3Manhattan(V3Sub(a, b)) == 1
}

// Rotation is a 3x3 integer matrix restricted to the 90 degree lattice
// symmetries.
type Rotation [3][3]int

// Rotations holds the nine non-identity rotations about the coordinate axes
// (±90 and 180 degrees around X, Y and Z).
var Rotations = []Rotation{
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{1, 0, 0}, {0, 0, 1}, {0, -1, 0}},
	{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
	{{0, 0, 1}, {0, 1, 0}, {-1, 0, 0}},
	{{0, 0, -1}, {0, 1, 0}, {1, 0, 0}},
	{{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, 1, 0}, {-1, 0, 0}, {0, 0, 1}},
	{{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}},
}

// Apply rotates v.
func (r Rotation) Apply(v Vec3) Vec3 {
	return Vec3{
		r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// RotateAbout rotates p around pivot.
func (r Rotation) RotateAbout(p, pivot Vec3) Vec3 {
	return V3Add(pivot, r.Apply(V3Sub(p, pivot)))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
