// Package segment manages the append-only log files that back GrausDb.
//
// Each segment is a file named "<generation>.log" in the store's data
// directory, where <generation> is a non-negative decimal integer. One
// generation is active (open for append by the Writer); every other
// generation on disk is frozen and only ever read. Segments are never
// modified once written; they are replaced wholesale by compaction.
package segment

import (
	"bufio"
	stdErrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/iamNilotpal/grausdb/internal/record"
	"github.com/iamNilotpal/grausdb/pkg/errors"
)

const extension = ".log"

// Segment wraps one open log file. A Segment created with CreateActive is
// append-only and owned exclusively by the Writer; one created with
// OpenReadOnly is shared by any number of concurrent readers, since
// ReadAt never touches a shared file cursor.
type Segment struct {
	Generation uint64

	file   *os.File
	size   int64 // current logical end of file; next append lands here
	closed atomic.Bool
}

// Name returns the canonical filename for generation gen.
func Name(gen uint64) string {
	return strconv.FormatUint(gen, 10) + extension
}

// Path returns the full path to generation gen's log file inside dir.
func Path(dir string, gen uint64) string {
	return filepath.Join(dir, Name(gen))
}

// ListGenerations scans dir for "<gen>.log" files and returns their
// generation numbers in ascending order. A filename that doesn't parse as
// "<decimal>.log" is ignored; it is not part of this store's contract, per
// spec.md §6 ("No other files are required").
func ListGenerations(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to list segment directory").WithPath(dir)
	}

	var gens []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, extension) {
			continue
		}
		idStr := strings.TrimSuffix(name, extension)
		gen, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			continue
		}
		gens = append(gens, gen)
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

// CreateActive opens generation gen for append, creating it if absent, and
// positions the logical write offset at the file's current end. It is used
// both for a brand-new active segment and for resuming one recovered by
// Replay (whose on-disk size may already reflect prior writes).
func CreateActive(dir string, gen uint64) (*Segment, error) {
	path := Path(dir, gen)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, path, Name(gen))
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat active segment").
			WithFileName(Name(gen)).WithPath(path)
	}

	return &Segment{Generation: gen, file: f, size: stat.Size()}, nil
}

// OpenReadOnly opens generation gen strictly for reading. Reader pool
// contexts use this; it never reuses a Writer's append handle.
func OpenReadOnly(dir string, gen uint64) (*Segment, error) {
	path := Path(dir, gen)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to open segment for reading").
			WithFileName(Name(gen)).WithPath(path)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat segment").
			WithFileName(Name(gen)).WithPath(path)
	}
	return &Segment{Generation: gen, file: f, size: stat.Size()}, nil
}

// Size returns the current logical length of the segment in bytes.
func (s *Segment) Size() int64 {
	return atomic.LoadInt64(&s.size)
}

// Append writes data at the segment's current end and flushes it durably
// to disk before returning, per spec.md §4.5's write-then-flush-then-
// publish ordering. It returns the offset at which data begins.
func (s *Segment) Append(data []byte) (int64, error) {
	off := s.size
	if _, err := s.file.WriteAt(data, off); err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to append record").
			WithSegmentID(int(s.Generation)).WithOffset(int(off))
	}
	if err := s.file.Sync(); err != nil {
		return 0, errors.ClassifySyncError(err, Name(s.Generation), s.file.Name(), int(off))
	}
	s.size += int64(len(data))
	return off, nil
}

// ReadAt reads exactly length bytes starting at offset. Readers use this
// for point lookups located via the key index.
func (s *Segment) ReadAt(offset int64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := s.file.ReadAt(buf, offset); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read record").
			WithSegmentID(int(s.Generation)).WithOffset(int(offset))
	}
	return buf, nil
}

// Truncate discards any bytes beyond n, used to drop a corrupt tail found
// during replay so that subsequent appends land exactly at the last
// well-formed record boundary.
func (s *Segment) Truncate(n int64) error {
	if err := s.file.Truncate(n); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to truncate segment").
			WithSegmentID(int(s.Generation))
	}
	s.size = n
	return nil
}

// Close closes the underlying file handle. It is safe to call once per
// Segment; a second call is a no-op.
func (s *Segment) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.file.Close()
}

// Remove closes and deletes the segment's file on disk. Used by compaction
// to retire a generation once the safe generation has advanced past it.
func (s *Segment) Remove() error {
	_ = s.Close()
	return os.Remove(s.file.Name())
}

// RemoveGeneration deletes generation gen's log file without requiring an
// already-open Segment handle. Compaction uses this for generations it
// never opened in the current process.
func RemoveGeneration(dir string, gen uint64) error {
	return os.Remove(Path(dir, gen))
}

// Entry is one fully-decoded record produced by Replay, along with its
// location within the segment being scanned.
type Entry struct {
	Record record.Record
	Offset int64
	Length uint32
}

// Replay sequentially decodes every record in generation gen from byte
// zero, invoking visit for each one in order. It returns the offset at
// which replay stopped.
//
// A record whose framing cannot be completed because the file simply ends
// partway through it (record.ErrIncomplete) is not an error: replay stops
// cleanly at the last well-formed boundary and that boundary is returned
// as endOffset, so the caller can truncate the file there before resuming
// writes. Any other decode failure is fatal corruption per spec.md §4.2
// and is returned as a *errors.StorageError wrapping record.ErrCorrupt.
func Replay(dir string, gen uint64, visit func(Entry) error) (endOffset int64, err error) {
	path := Path(dir, gen)
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to open segment for replay").
			WithFileName(Name(gen)).WithPath(path)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var offset int64

	for {
		rec, n, decodeErr := record.Decode(br)
		if decodeErr != nil {
			if decodeErr == io.EOF {
				break
			}
			if stdErrors.Is(decodeErr, record.ErrIncomplete) {
				break
			}
			return offset, errors.NewStorageError(decodeErr, errors.ErrorCodeSegmentCorrupted, "corrupt record during replay").
				WithFileName(Name(gen)).WithOffset(int(offset))
		}

		entry := Entry{Record: rec, Offset: offset, Length: uint32(n)}
		if err := visit(entry); err != nil {
			return offset, err
		}
		offset += int64(n)
	}

	return offset, nil
}
