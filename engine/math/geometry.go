package math

// FaceNormal returns the (unnormalized) normal of the triangle p0-p1-p2.
// The magnitude is twice the triangle area, which callers use both as a
// degeneracy check and as an area weight.
func FaceNormal(p0, p1, p2 Vec3) Vec3 {
	edge1 := p1.Sub(p0)
	edge2 := p2.Sub(p0)
	return edge1.Cross(edge2)
}

// TriangleArea returns the area of the triangle p0-p1-p2.
func TriangleArea(p0, p1, p2 Vec3) float32 {
	return FaceNormal(p0, p1, p2).Length() * 0.5
}
