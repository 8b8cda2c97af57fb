package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	persistlog "buildnblocks.io/internal/persistence/log"
	"buildnblocks.io/internal/protocol"
	"buildnblocks.io/internal/sim/tuning"
	"buildnblocks.io/internal/sim/world"
	"buildnblocks.io/internal/sim/world/terrain/store"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory")
		worldID    = flag.String("world", "world_1", "world id")
		auditDir   = flag.String("audit", "", "audit dir containing audit-*.jsonl.zst (default: <data>/worlds/<world>/audit)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		until      = flag.String("until", "", "stop at this RFC3339 time (optional)")
		wantDigest = flag.String("digest", "", "expected world digest (optional)")
		outPath    = flag.String("out", "", "write the rebuilt world as world-data JSON (optional)")
	)
	flag.Parse()

	dir := strings.TrimSpace(*auditDir)
	if dir == "" {
		dir = persistlog.AuditDir(filepath.Join(*dataDir, "worlds", *worldID))
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	var untilMs int64
	if s := strings.TrimSpace(*until); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -until:", err)
			os.Exit(2)
		}
		untilMs = ts.UnixMilli()
	}

	res, err := replay(dir, world.ConfigFromTuning(tune), untilMs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	total, ground := res.Store.Count()
	digest := res.Store.Digest()
	fmt.Printf("replay ok: entries=%d applied=%d runs=%d builds=%d removes=%d world_sets=%d voxels=%d ground=%d digest=%s\n",
		res.Entries, res.Applied, res.Runs, res.Builds, res.Removes, res.WorldSets, total, ground, digest)

	if *wantDigest != "" && *wantDigest != digest {
		fmt.Fprintf(os.Stderr, "digest mismatch: got=%s want=%s\n", digest, *wantDigest)
		os.Exit(1)
	}
	if *outPath != "" {
		if err := writeWorldData(*outPath, res.Store); err != nil {
			fmt.Fprintln(os.Stderr, "write world-data:", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *outPath)
	}
}

var errStopReplay = errors.New("stop replay")

type result struct {
	Store *store.Store

	Entries   int
	Applied   int
	Runs      int
	Builds    int
	Removes   int
	WorldSets int
}

// replay rebuilds the voxel world from the journal. The world lives in memory
// only, so a sequence number that goes backwards marks a server restart and
// resets the store to bare ground.
func replay(dir string, cfg world.Config, untilMs int64) (result, error) {
	fresh := func() *store.Store {
		s := store.New(cfg.Bounds)
		s.InitializeGround(cfg.GroundMin, cfg.GroundMax, cfg.GroundY, cfg.GroundColor)
		return s
	}
	res := result{Store: fresh()}
	files, err := persistlog.AuditFiles(dir)
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		return res, fmt.Errorf("no audit files found in %s", dir)
	}

	var lastSeq uint64
	for _, path := range files {
		err = persistlog.ReadAuditFile(path, func(e world.AuditEntry) error {
			if untilMs != 0 && e.TimeMs > untilMs {
				return errStopReplay
			}
			if res.Runs == 0 || e.Seq <= lastSeq {
				if res.Runs > 0 {
					res.Store = fresh()
				}
				res.Runs++
			}
			lastSeq = e.Seq
			res.Entries++
			if world.ApplyAudit(res.Store, e) {
				res.Applied++
			}
			switch e.Action {
			case world.AuditBuild:
				res.Builds++
			case world.AuditRemove:
				res.Removes++
			case world.AuditWorldSet:
				res.WorldSets++
			}
			return nil
		})
		if err != nil {
			break
		}
	}
	if errors.Is(err, errStopReplay) {
		err = nil
	}
	return res, err
}

func writeWorldData(path string, s *store.Store) error {
	voxels := s.Destructible()
	blocks := make([]protocol.VoxelPayload, 0, len(voxels))
	for _, v := range voxels {
		blocks = append(blocks, protocol.VoxelPayload{X: v.X, Y: v.Y, Z: v.Z, Color: v.Color})
	}
	b, err := json.Marshal(protocol.BlocksPayload{Blocks: blocks})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}
