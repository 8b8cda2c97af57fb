package store

import (
	"sync"

	"buildnblocks.io/internal/sim/world/logic/coords"
)

// DefaultColor is used wherever a client supplies no usable color.
const DefaultColor uint32 = 0xFFFFFF

// Voxel is one unit cube. Indestructible voxels are server-generated ground.
type Voxel struct {
	X              int    `json:"x"`
	Y              int    `json:"y"`
	Z              int    `json:"z"`
	Color          uint32 `json:"color"`
	Indestructible bool   `json:"indestructible"`
}

func (v Voxel) Pos() coords.Vec3i { return coords.Vec3i{X: v.X, Y: v.Y, Z: v.Z} }

// Store is the authoritative position -> voxel map.
// Every method is safe for concurrent use; bulk replacement holds the write
// lock for its whole duration so readers never see a partially cleared world.
type Store struct {
	bounds coords.Bounds

	mu     sync.RWMutex
	voxels map[coords.Key]Voxel

	indestructible int
}

func New(bounds coords.Bounds) *Store {
	return &Store{
		bounds: bounds,
		voxels: map[coords.Key]Voxel{},
	}
}
