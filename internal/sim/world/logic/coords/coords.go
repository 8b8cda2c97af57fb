package coords

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Key is the canonical lookup key of a voxel position ("x|y|z").
// Two positions share a key iff they are equal componentwise.
type Key string

func KeyOf(x, y, z int) Key {
	b := make([]byte, 0, 24)
	b = strconv.AppendInt(b, int64(x), 10)
	b = append(b, '|')
	b = strconv.AppendInt(b, int64(y), 10)
	b = append(b, '|')
	b = strconv.AppendInt(b, int64(z), 10)
	return Key(b)
}

func (v Vec3i) Key() Key { return KeyOf(v.X, v.Y, v.Z) }

func ParseKey(k Key) (Vec3i, error) {
	parts := strings.Split(string(k), "|")
	if len(parts) != 3 {
		return Vec3i{}, fmt.Errorf("bad voxel key %q", k)
	}
	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Vec3i{}, fmt.Errorf("bad voxel key %q: %w", k, err)
		}
		out[i] = n
	}
	return Vec3i{X: out[0], Y: out[1], Z: out[2]}, nil
}

// Bounds is an inclusive coordinate range applied to every axis.
type Bounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (b Bounds) ContainsAxis(n int) bool { return n >= b.Min && n <= b.Max }

func (b Bounds) Contains(v Vec3i) bool {
	return b.ContainsAxis(v.X) && b.ContainsAxis(v.Y) && b.ContainsAxis(v.Z)
}

// Coordinates travel as JSON numbers; anything beyond int32 is never a valid voxel.
const maxAbsCoord = math.MaxInt32

// ExactInt reports whether f is a finite integral number small enough to be a coordinate.
func ExactInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if math.Abs(f) > maxAbsCoord {
		return 0, false
	}
	return int(f), true
}

// RoundHalfUp rounds a finite number to the nearest integer, halves toward +Inf.
func RoundHalfUp(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	r := math.Floor(f + 0.5)
	if math.Abs(r) > maxAbsCoord {
		return 0, false
	}
	return int(r), true
}
