package store

import "buildnblocks.io/internal/sim/world/logic/coords"

// AddVoxel inserts a voxel if the position is free and reports whether it did.
func (s *Store) AddVoxel(p coords.Vec3i, color uint32, indestructible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(p, color, indestructible)
}

func (s *Store) addLocked(p coords.Vec3i, color uint32, indestructible bool) bool {
	k := p.Key()
	if _, ok := s.voxels[k]; ok {
		return false
	}
	s.voxels[k] = Voxel{X: p.X, Y: p.Y, Z: p.Z, Color: color & 0xFFFFFF, Indestructible: indestructible}
	if indestructible {
		s.indestructible++
	}
	return true
}

// RemoveVoxel deletes a destructible voxel and reports whether it did.
// Absent and indestructible voxels are left alone.
func (s *Store) RemoveVoxel(p coords.Vec3i) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := p.Key()
	v, ok := s.voxels[k]
	if !ok || v.Indestructible {
		return false
	}
	delete(s.voxels, k)
	return true
}

func (s *Store) Get(p coords.Vec3i) (Voxel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.voxels[p.Key()]
	return v, ok
}

// Count returns the total and indestructible voxel counts.
func (s *Store) Count() (total, indestructible int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.voxels), s.indestructible
}
