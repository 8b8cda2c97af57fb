package store

import (
	"sync"
	"testing"

	"buildnblocks.io/internal/sim/world/logic/coords"
)

func newTestStore() *Store {
	return New(coords.Bounds{Min: -512, Max: 512})
}

func TestInitializeGround_FiftyByFifty(t *testing.T) {
	s := newTestStore()
	if got := s.InitializeGround(-25, 24, 0, DefaultColor); got != 2500 {
		t.Fatalf("ground added: got %d want %d", got, 2500)
	}
	total, ground := s.Count()
	if total != 2500 || ground != 2500 {
		t.Fatalf("count: got total=%d ground=%d want 2500/2500", total, ground)
	}
	for _, v := range s.Snapshot() {
		if !v.Indestructible || v.Y != 0 {
			t.Fatalf("unexpected ground voxel %+v", v)
		}
	}
}

func TestAddVoxel_Idempotent(t *testing.T) {
	s := newTestStore()
	p := coords.Vec3i{X: 1, Y: 1, Z: 1}
	if !s.AddVoxel(p, 0xff0000, false) {
		t.Fatalf("first add should insert")
	}
	if s.AddVoxel(p, 0x00ff00, false) {
		t.Fatalf("second add should be a no-op")
	}
	v, ok := s.Get(p)
	if !ok || v.Color != 0xff0000 {
		t.Fatalf("stored voxel: got %+v ok=%v", v, ok)
	}
	if total, _ := s.Count(); total != 1 {
		t.Fatalf("count: got %d want 1", total)
	}
}

func TestRemoveVoxel_IndestructibleAndAbsent(t *testing.T) {
	s := newTestStore()
	s.InitializeGround(-1, 1, 0, DefaultColor)
	if s.RemoveVoxel(coords.Vec3i{X: 0, Y: 0, Z: 0}) {
		t.Fatalf("ground removal should be refused")
	}
	if _, ok := s.Get(coords.Vec3i{}); !ok {
		t.Fatalf("ground voxel disappeared")
	}
	if s.RemoveVoxel(coords.Vec3i{X: 5, Y: 5, Z: 5}) {
		t.Fatalf("absent removal should be a no-op")
	}

	p := coords.Vec3i{X: 0, Y: 1, Z: 0}
	s.AddVoxel(p, 1, false)
	if !s.RemoveVoxel(p) {
		t.Fatalf("destructible removal should succeed")
	}
	if s.RemoveVoxel(p) {
		t.Fatalf("second removal should be a no-op")
	}
}

func TestReplaceDestructible_PreservesGround(t *testing.T) {
	s := newTestStore()
	s.InitializeGround(-2, 2, 0, 0x123456)
	before := map[coords.Key]Voxel{}
	for _, v := range s.Snapshot() {
		before[v.Pos().Key()] = v
	}
	s.AddVoxel(coords.Vec3i{X: 9, Y: 9, Z: 9}, 7, false)

	incoming := []Voxel{
		{X: 0, Y: 0, Z: 0, Color: 0xff0000},   // collides with ground
		{X: 0, Y: 1, Z: 0, Color: 0x00ff00},   // ok
		{X: 0, Y: 1, Z: 0, Color: 0x0000ff},   // duplicate
		{X: 600, Y: 1, Z: 0, Color: 0x0000ff}, // out of bounds
		{X: 3, Y: 0, Z: 3, Color: 0xabcdef, Indestructible: true},
	}
	if got := s.ReplaceDestructible(incoming); got != 2 {
		t.Fatalf("installed: got %d want 2", got)
	}

	if _, ok := s.Get(coords.Vec3i{X: 9, Y: 9, Z: 9}); ok {
		t.Fatalf("old destructible voxel survived the replacement")
	}
	for k, want := range before {
		p, _ := coords.ParseKey(k)
		got, ok := s.Get(p)
		if !ok || got != want {
			t.Fatalf("ground at %s changed: got %+v want %+v", k, got, want)
		}
	}
	if d := s.Destructible(); len(d) != 2 {
		t.Fatalf("Destructible: got %d voxels want 2", len(d))
	}
	v, _ := s.Get(coords.Vec3i{X: 0, Y: 1, Z: 0})
	if v.Color != 0x00ff00 || v.Indestructible {
		t.Fatalf("installed voxel: got %+v", v)
	}
	if v, _ := s.Get(coords.Vec3i{X: 3, Y: 0, Z: 3}); v.Indestructible {
		t.Fatalf("uploaded voxels must never become indestructible")
	}
}

func TestConcurrentAddStorm_OneVoxelPerPosition(t *testing.T) {
	s := newTestStore()
	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := map[coords.Key]int{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(color uint32) {
			defer wg.Done()
			for x := 0; x < 20; x++ {
				for z := 0; z < 20; z++ {
					p := coords.Vec3i{X: x, Y: 1, Z: z}
					if s.AddVoxel(p, color, false) {
						mu.Lock()
						wins[p.Key()]++
						mu.Unlock()
					}
				}
			}
		}(uint32(i))
	}
	wg.Wait()

	if total, _ := s.Count(); total != 400 {
		t.Fatalf("count: got %d want 400", total)
	}
	for k, n := range wins {
		if n != 1 {
			t.Fatalf("position %s inserted %d times", k, n)
		}
	}
}

func TestSnapshot_ReplaceIsAtomicForReaders(t *testing.T) {
	s := newTestStore()
	s.InitializeGround(-5, 5, 0, DefaultColor)
	setA := make([]Voxel, 0, 50)
	setB := make([]Voxel, 0, 50)
	for i := 0; i < 50; i++ {
		setA = append(setA, Voxel{X: i - 25, Y: 1, Z: 0, Color: 1})
		setB = append(setB, Voxel{X: i - 25, Y: 2, Z: 0, Color: 2})
	}
	s.ReplaceDestructible(setA)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				s.ReplaceDestructible(setB)
			} else {
				s.ReplaceDestructible(setA)
			}
		}
	}()
	for {
		select {
		case <-done:
			return
		default:
		}
		snap := s.Snapshot()
		if len(snap) != 121+50 {
			t.Fatalf("observed partial world: %d voxels", len(snap))
		}
	}
}

func TestDigest_OrderIndependent(t *testing.T) {
	a := newTestStore()
	b := newTestStore()
	a.AddVoxel(coords.Vec3i{X: 1}, 1, false)
	a.AddVoxel(coords.Vec3i{X: 2}, 2, false)
	b.AddVoxel(coords.Vec3i{X: 2}, 2, false)
	b.AddVoxel(coords.Vec3i{X: 1}, 1, false)
	if a.Digest() != b.Digest() {
		t.Fatalf("digest should not depend on insertion order")
	}
	b.RemoveVoxel(coords.Vec3i{X: 1})
	if a.Digest() == b.Digest() {
		t.Fatalf("digest should change with content")
	}
}
