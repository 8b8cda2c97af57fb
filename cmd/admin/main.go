package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	persistlog "buildnblocks.io/internal/persistence/log"
	"buildnblocks.io/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "history":
			historyCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

// historyCmd prints journal edits inside a box, oldest first.
func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2 (required)")
	since := fs.String("since", "", "only entries at or after this RFC3339 time (optional)")
	actor := fs.String("actor", "", "only entries by this connection id (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "missing -aabb")
		os.Exit(2)
	}
	min, max, err := parseAABB(*aabb)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -aabb:", err)
		os.Exit(2)
	}
	var sinceMs int64
	if s := strings.TrimSpace(*since); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -since:", err)
			os.Exit(2)
		}
		sinceMs = ts.UnixMilli()
	}

	dir := persistlog.AuditDir(filepath.Join(*dataDir, "worlds", *worldID))
	recs, err := readHistory(dir, historyFilter{Min: min, Max: max, SinceMs: sinceMs, Actor: strings.TrimSpace(*actor)})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, e := range recs {
		printJSON(e)
	}
	fmt.Fprintf(os.Stderr, "%d matching entries\n", len(recs))
}

type historyFilter struct {
	Min, Max [3]int
	SinceMs  int64
	Actor    string
}

// readHistory returns BUILD and REMOVE entries inside the filter box plus
// WORLD_SET entries that installed at least one voxel inside it.
func readHistory(dir string, f historyFilter) ([]world.AuditEntry, error) {
	var out []world.AuditEntry
	err := persistlog.ReadAuditDir(dir, func(e world.AuditEntry) error {
		if e.TimeMs < f.SinceMs {
			return nil
		}
		if f.Actor != "" && e.Actor != f.Actor {
			return nil
		}
		switch e.Action {
		case world.AuditBuild, world.AuditRemove:
			if withinAABB(e.Pos, f.Min, f.Max) {
				out = append(out, e)
			}
		case world.AuditWorldSet:
			for _, v := range e.Voxels {
				if withinAABB([3]int{v.X, v.Y, v.Z}, f.Min, f.Max) {
					// Keep the line short; the full voxel list is in the journal.
					e.Voxels = nil
					out = append(out, e)
					break
				}
			}
		}
		return nil
	})
	return out, err
}

func withinAABB(pos [3]int, min, max [3]int) bool {
	return pos[0] >= min[0] && pos[0] <= max[0] &&
		pos[1] >= min[1] && pos[1] <= max[1] &&
		pos[2] >= min[2] && pos[2] <= max[2]
}

func parseAABB(s string) (min, max [3]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
