package queue

import (
	"cmp"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fwojciec/recrawl"
)

// Compile-time interface verification.
var (
	_ recrawl.RequestQueue = (*Disk)(nil)
	_ recrawl.Stasher      = (*Disk)(nil)
	_ recrawl.FrontPutter  = (*Disk)(nil)
)

const segmentExt = ".seg"

// Disk is a FIFO queue that keeps at most two buffers of maxsize requests in
// memory and spills the rest to numbered segment files in its directory.
//
// Put fills the head buffer while nothing is queued behind it; after that
// requests go to the tmp buffer, which is written whole to a new segment
// file when it reaches maxsize. Get drains head; when head is exhausted it
// loads the oldest segment, deleting the file once decoded, or swaps tmp in
// as the new head when no segment is left.
//
// A segment is delivered at most once: a crash after a segment was loaded
// but before the next stash loses that segment. Recovering such a stash
// skips the segment and logs the loss.
type Disk struct {
	dir     string
	maxsize int
	clear   bool
	logger  *slog.Logger

	head     []*recrawl.Request
	hi       int
	tmp      []*recrawl.Request
	segments []segment
	next     int

	// n is the only source of truth for Len. The buffers briefly hold the
	// same items while a segment is swapped in.
	n int
}

type segment struct {
	Seq   int
	Count int
}

// DiskOption configures a Disk queue.
type DiskOption func(*Disk)

// WithClear removes everything in the queue directory when the queue is
// opened. Without it, segments left by a previous run are picked up oldest
// first.
func WithClear() DiskOption {
	return func(q *Disk) {
		q.clear = true
	}
}

// WithLogger sets the logger that reports segments lost by a crash.
func WithLogger(logger *slog.Logger) DiskOption {
	return func(q *Disk) {
		q.logger = logger
	}
}

// NewDisk opens a Disk queue in dir holding at most maxsize requests per
// buffer and per segment.
func NewDisk(dir string, maxsize int, opts ...DiskOption) (*Disk, error) {
	if maxsize <= 0 {
		return nil, recrawl.Errorf(recrawl.EINVALID, "disk queue maxsize must be positive, got %d", maxsize)
	}
	q := &Disk{
		dir:     dir,
		maxsize: maxsize,
		next:    1,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(q)
	}

	if q.clear {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("clear queue directory: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}
	if err := q.scan(); err != nil {
		return nil, err
	}
	return q, nil
}

// scan picks up segments already present in the directory.
func (q *Disk) scan() error {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return fmt.Errorf("read queue directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, segmentExt) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimSuffix(name, segmentExt))
		if err != nil {
			continue
		}
		reqs, err := q.readSegment(seq)
		if err != nil {
			return err
		}
		q.segments = append(q.segments, segment{Seq: seq, Count: len(reqs)})
		q.n += len(reqs)
	}
	slices.SortFunc(q.segments, func(a, b segment) int { return cmp.Compare(a.Seq, b.Seq) })
	if len(q.segments) > 0 {
		q.next = q.segments[len(q.segments)-1].Seq + 1
	}
	return nil
}

func (q *Disk) segmentPath(seq int) string {
	return filepath.Join(q.dir, fmt.Sprintf("%08d%s", seq, segmentExt))
}

// Put appends req. The request is buffered before any segment is written,
// so a failed flush returns an error without losing it.
func (q *Disk) Put(req *recrawl.Request) error {
	if req == nil {
		return recrawl.Errorf(recrawl.EINVALID, "nil request")
	}

	if len(q.tmp) == 0 && len(q.segments) == 0 && len(q.head)-q.hi < q.maxsize {
		q.head = append(q.head, req)
		q.n++
		return nil
	}

	q.tmp = append(q.tmp, req)
	q.n++
	if len(q.tmp) >= q.maxsize {
		return q.flush()
	}
	return nil
}

func (q *Disk) PutMany(reqs []*recrawl.Request) error {
	for _, req := range reqs {
		if err := q.Put(req); err != nil {
			return err
		}
	}
	return nil
}

// flush writes tmp to the next segment file and resets tmp.
func (q *Disk) flush() error {
	seq := q.next
	path := q.segmentPath(seq)
	part := path + ".part"

	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}
	if err := encodeRequests(f, q.tmp); err != nil {
		f.Close()
		os.Remove(part)
		return fmt.Errorf("write segment: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return fmt.Errorf("close segment: %w", err)
	}
	if err := os.Rename(part, path); err != nil {
		os.Remove(part)
		return fmt.Errorf("commit segment: %w", err)
	}

	q.segments = append(q.segments, segment{Seq: seq, Count: len(q.tmp)})
	q.next++
	q.tmp = nil
	return nil
}

func (q *Disk) readSegment(seq int) ([]*recrawl.Request, error) {
	f, err := os.Open(q.segmentPath(seq))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, recrawl.Errorf(recrawl.ECORRUPT, "segment %d missing", seq)
		}
		return nil, fmt.Errorf("open segment: %w", err)
	}
	defer f.Close()

	reqs, err := decodeRequests(f)
	if err != nil {
		return nil, recrawl.Errorf(recrawl.ECORRUPT, "segment %d: %s", seq, recrawl.ErrorMessage(err))
	}
	return reqs, nil
}

// refill replaces an exhausted head with the oldest segment or with tmp.
// It reports false if there is nothing left.
func (q *Disk) refill() (bool, error) {
	for q.hi >= len(q.head) {
		q.head, q.hi = nil, 0
		switch {
		case len(q.segments) > 0:
			seg := q.segments[0]
			reqs, err := q.readSegment(seg.Seq)
			if err != nil {
				return false, err
			}
			q.head = reqs
			q.segments = q.segments[1:]
			if err := os.Remove(q.segmentPath(seg.Seq)); err != nil {
				return false, fmt.Errorf("remove loaded segment: %w", err)
			}
		case len(q.tmp) > 0:
			q.head, q.tmp = q.tmp, nil
		default:
			return false, nil
		}
	}
	return true, nil
}

func (q *Disk) Get() (*recrawl.Request, error) {
	ok, err := q.refill()
	if err != nil || !ok {
		return nil, err
	}
	req := q.head[q.hi]
	q.head[q.hi] = nil
	q.hi++
	q.n--

	// Put keeps appending to head while few requests are queued, so the
	// consumed prefix is dropped before it outgrows one buffer.
	if q.hi == len(q.head) || q.hi >= q.maxsize {
		live := copy(q.head, q.head[q.hi:])
		clear(q.head[live:])
		q.head, q.hi = q.head[:live], 0
	}
	return req, nil
}

// PutFront puts req ahead of every queued request.
func (q *Disk) PutFront(req *recrawl.Request) error {
	if req == nil {
		return recrawl.Errorf(recrawl.EINVALID, "nil request")
	}
	if q.hi > 0 {
		q.hi--
		q.head[q.hi] = req
	} else {
		q.head = slices.Insert(q.head, 0, req)
	}
	q.n++
	return nil
}

func (q *Disk) Head() (*recrawl.Request, error) {
	ok, err := q.refill()
	if err != nil || !ok {
		return nil, err
	}
	return q.head[q.hi], nil
}

func (q *Disk) Len() int {
	return q.n
}

func (q *Disk) Empty() bool {
	return q.n == 0
}

// Clear drops every queued request and deletes the segment files.
func (q *Disk) Clear() error {
	for _, seg := range q.segments {
		if err := os.Remove(q.segmentPath(seg.Seq)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove segment: %w", err)
		}
	}
	q.head, q.hi, q.tmp, q.segments, q.n = nil, 0, nil, nil, 0
	return nil
}

// diskState is the stashed form of a Disk queue. Segment files are already
// on disk, so only their order and sizes are recorded.
type diskState struct {
	Head     []*recrawl.Request
	Tmp      []*recrawl.Request
	Segments []segment
	Next     int
}

// Stash writes the in-memory buffers and the segment list to w.
func (q *Disk) Stash(w io.Writer) error {
	return gob.NewEncoder(w).Encode(diskState{
		Head:     q.head[q.hi:],
		Tmp:      q.tmp,
		Segments: q.segments,
		Next:     q.next,
	})
}

// Recover restores the buffers and segment list read from r.
//
// A listed segment that no longer exists was loaded after the stash was
// written; its requests are lost and skipped. Segments written after the
// stash hold requests the recovered frontier does not know about and are
// deleted.
func (q *Disk) Recover(r io.Reader) error {
	var st diskState
	if err := gob.NewDecoder(r).Decode(&st); err != nil {
		return recrawl.Errorf(recrawl.ECORRUPT, "decode disk queue: %v", err)
	}
	next := max(st.Next, 1)
	listed := make(map[int]bool, len(st.Segments))
	segments := make([]segment, 0, len(st.Segments))
	n := len(st.Head) + len(st.Tmp)
	for _, seg := range st.Segments {
		listed[seg.Seq] = true
		_, err := os.Stat(q.segmentPath(seg.Seq))
		if errors.Is(err, os.ErrNotExist) {
			q.logger.Warn("queued requests lost", "dir", q.dir, "segment", seg.Seq, "requests", seg.Count)
			continue
		} else if err != nil {
			return fmt.Errorf("stat segment %d: %w", seg.Seq, err)
		}
		segments = append(segments, seg)
		n += seg.Count
	}
	if err := q.removeUnlisted(next, listed); err != nil {
		return err
	}

	q.head, q.hi = st.Head, 0
	q.tmp = st.Tmp
	q.segments = segments
	q.next = next
	q.n = n
	return nil
}

// removeUnlisted deletes segment files numbered from next on that are not
// in listed.
func (q *Disk) removeUnlisted(next int, listed map[int]bool) error {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return fmt.Errorf("read queue directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, segmentExt) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimSuffix(name, segmentExt))
		if err != nil || seq < next || listed[seq] {
			continue
		}
		if err := os.Remove(q.segmentPath(seq)); err != nil {
			return fmt.Errorf("remove stale segment %d: %w", seq, err)
		}
	}
	return nil
}
