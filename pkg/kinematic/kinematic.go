package kinematic

// This package includes a 2D vector type and helpers for
// constant-acceleration kinematics.

import "math"

// Vector is a 2D vector.
type Vector struct {
	X float64
	Y float64
}

// Add returns the component-wise sum of two vectors.
func (v Vector) Add(other Vector) Vector {
	return Vector{X: v.X + other.X, Y: v.Y + other.Y}
}

// Scale returns the vector scaled by a factor.
func (v Vector) Scale(factor float64) Vector {
	return Vector{X: v.X * factor, Y: v.Y * factor}
}

// Length returns the magnitude of the vector.
func (v Vector) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// ClampLength returns the vector with its magnitude limited to max.
func (v Vector) ClampLength(max float64) Vector {
	length := v.Length()
	if length <= max || length == 0 {
		return v
	}
	return v.Scale(max / length)
}

// Displacement returns the displacement of an object given its initial velocity, time, and acceleration.
func Displacement(initialVelocity float64, time float64, acceleration float64) float64 {
	return initialVelocity*time + 0.5*acceleration*math.Pow(time, 2)
}

// FinalVelocity returns the final velocity of an object given its initial velocity, time, and acceleration.
func FinalVelocity(initialVelocity float64, time float64, acceleration float64) float64 {
	return initialVelocity + acceleration*time
}

// Heading returns a unit vector pointing in the direction of the given angle in radians.
func Heading(angle float64) Vector {
	return Vector{X: math.Cos(angle), Y: math.Sin(angle)}
}
