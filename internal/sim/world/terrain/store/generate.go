package store

import "buildnblocks.io/internal/sim/world/logic/coords"

// InitializeGround lays an indestructible platform over [min,max] on both
// horizontal axes at height y. It must run before clients are served.
func (s *Store) InitializeGround(min, max, y int, color uint32) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for x := min; x <= max; x++ {
		for z := min; z <= max; z++ {
			if s.addLocked(coords.Vec3i{X: x, Y: y, Z: z}, color, true) {
				added++
			}
		}
	}
	return added
}
