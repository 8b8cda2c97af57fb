package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"buildnblocks.io/internal/sim/world"
)

// AuditFiles lists the audit journal files under dir in chronological order.
func AuditFiles(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, segmentPrefix+"*"+segmentSuffix))
	if err != nil {
		return nil, err
	}
	// The hour stamp sorts lexically.
	sort.Strings(paths)
	return paths, nil
}

// ReadAuditFile calls fn for every entry in one journal file. A truncated
// tail (file still being written) ends the read without error.
func ReadAuditFile(path string, fn func(world.AuditEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	r := bufio.NewReaderSize(dec, 256*1024)
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 && err == nil {
			var e world.AuditEntry
			if jerr := json.Unmarshal(line, &e); jerr != nil {
				return fmt.Errorf("%s:%d: %w", filepath.Base(path), lineNo, jerr)
			}
			if ferr := fn(e); ferr != nil {
				return ferr
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
}

// ReadAuditDir reads every journal file under dir in order.
func ReadAuditDir(dir string, fn func(world.AuditEntry) error) error {
	paths, err := AuditFiles(dir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := ReadAuditFile(p, fn); err != nil {
			return err
		}
	}
	return nil
}
