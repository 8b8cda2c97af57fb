package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// Snapshot returns every voxel ordered by (x, y, z).
func (s *Store) Snapshot() []Voxel {
	s.mu.RLock()
	out := make([]Voxel, 0, len(s.voxels))
	for _, v := range s.voxels {
		out = append(out, v)
	}
	s.mu.RUnlock()

	sortVoxels(out)
	return out
}

// Destructible returns the player-built voxels in Snapshot order.
func (s *Store) Destructible() []Voxel {
	s.mu.RLock()
	out := make([]Voxel, 0, len(s.voxels)-s.indestructible)
	for _, v := range s.voxels {
		if !v.Indestructible {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()

	sortVoxels(out)
	return out
}

// ReplaceDestructible clears every destructible voxel and installs the given
// ones, skipping entries that are out of bounds, collide with ground or repeat
// an earlier position. It returns how many were installed.
func (s *Store) ReplaceDestructible(voxels []Voxel) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.voxels {
		if !v.Indestructible {
			delete(s.voxels, k)
		}
	}

	added := 0
	for _, v := range voxels {
		p := v.Pos()
		if !s.bounds.Contains(p) {
			continue
		}
		if s.addLocked(p, v.Color, false) {
			added++
		}
	}
	return added
}

// Digest is a sha256 over the ordered voxel set; equal worlds have equal digests.
func (s *Store) Digest() string {
	return DigestOf(s.Snapshot())
}

// DigestOf hashes voxels that are already in Snapshot order.
func DigestOf(voxels []Voxel) string {
	h := sha256.New()
	var tmp [17]byte
	for _, v := range voxels {
		binary.LittleEndian.PutUint32(tmp[0:4], uint32(int32(v.X)))
		binary.LittleEndian.PutUint32(tmp[4:8], uint32(int32(v.Y)))
		binary.LittleEndian.PutUint32(tmp[8:12], uint32(int32(v.Z)))
		binary.LittleEndian.PutUint32(tmp[12:16], v.Color)
		tmp[16] = 0
		if v.Indestructible {
			tmp[16] = 1
		}
		h.Write(tmp[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortVoxels(vs []Voxel) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].X != vs[j].X {
			return vs[i].X < vs[j].X
		}
		if vs[i].Y != vs[j].Y {
			return vs[i].Y < vs[j].Y
		}
		return vs[i].Z < vs[j].Z
	})
}
