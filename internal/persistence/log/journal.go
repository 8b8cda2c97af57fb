package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"buildnblocks.io/internal/sim/world"
)

// Journal segments are named audit-YYYY-MM-DD-HH.jsonl.zst, one per UTC hour.
const (
	segmentPrefix = "audit-"
	segmentSuffix = ".jsonl.zst"
	segmentHour   = "2006-01-02-15"
)

func AuditDir(dataDir string) string { return filepath.Join(dataDir, "audit") }

func segmentPath(dir, hour string) string {
	return filepath.Join(dir, segmentPrefix+hour+segmentSuffix)
}

// segment is the open file for one hour of audit entries.
type segment struct {
	hour string
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
	enc  *json.Encoder
}

func openSegment(dir, hour string) (*segment, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(segmentPath(dir, hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	buf := bufio.NewWriterSize(zw, 64*1024)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &segment{hour: hour, file: f, zw: zw, buf: buf, enc: enc}, nil
}

// append writes one line and flushes a zstd frame so the entry is readable
// while the segment is still open.
func (s *segment) append(v any) error {
	if err := s.enc.Encode(v); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.zw.Flush()
}

func (s *segment) close() error {
	ferr := s.buf.Flush()
	zerr := s.zw.Close()
	cerr := s.file.Close()
	for _, err := range []error{ferr, zerr, cerr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// AuditJournal is the world's write-only mutation record. It implements
// world.AuditLogger and is safe for concurrent use.
type AuditJournal struct {
	dir   string
	clock func() time.Time

	mu  sync.Mutex
	cur *segment
}

func NewAuditJournal(dataDir string) *AuditJournal {
	return &AuditJournal{dir: AuditDir(dataDir), clock: time.Now}
}

func (j *AuditJournal) WriteAudit(e world.AuditEntry) error { return j.writeLine(e) }

func (j *AuditJournal) writeLine(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	hour := j.clock().UTC().Format(segmentHour)
	if j.cur == nil || j.cur.hour != hour {
		if err := j.closeLocked(); err != nil {
			return err
		}
		seg, err := openSegment(j.dir, hour)
		if err != nil {
			return err
		}
		j.cur = seg
	}
	return j.cur.append(v)
}

func (j *AuditJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *AuditJournal) closeLocked() error {
	if j.cur == nil {
		return nil
	}
	err := j.cur.close()
	j.cur = nil
	return err
}
