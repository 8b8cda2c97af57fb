package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"buildnblocks.io/internal/persistence/indexdb"
	"buildnblocks.io/internal/sim/world"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id (ignored with -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	actor := fs.String("actor", "", "actor filter (recent)")
	_ = fs.Parse(args)

	q := "recent"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "audit.sqlite")
	}
	idx, err := indexdb.OpenSQLiteReadOnly(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch q {
	case "recent":
		rows, err := idx.RecentAudits(ctx, strings.TrimSpace(*actor), *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(struct {
				ID     int64  `json:"id"`
				Seq    uint64 `json:"seq"`
				Time   string `json:"time"`
				Actor  string `json:"actor"`
				Action string `json:"action"`
				Pos    [3]int `json:"pos"`
				Color  string `json:"color,omitempty"`
				Name   string `json:"name,omitempty"`
				Voxels int    `json:"voxels,omitempty"`
			}{
				ID:     r.ID,
				Seq:    r.Seq,
				Time:   time.UnixMilli(r.TimeMs).UTC().Format(time.RFC3339Nano),
				Actor:  r.Actor,
				Action: r.Action,
				Pos:    r.Pos,
				Color:  colorHex(r.Action, r.Color),
				Name:   r.Name,
				Voxels: r.Voxels,
			})
		}

	case "actors":
		rows, err := idx.ActorCounts(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(struct {
				Actor   string `json:"actor"`
				Builds  int    `json:"builds"`
				Removes int    `json:"removes"`
				Total   int    `json:"total"`
			}{r.Actor, r.Builds, r.Removes, r.Total})
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want recent or actors)")
		os.Exit(2)
	}
}

func colorHex(action string, c uint32) string {
	if action != world.AuditBuild {
		return ""
	}
	return fmt.Sprintf("#%06x", c)
}
