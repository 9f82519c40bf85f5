package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tcncore/internal/domain"
)

// storageErr tags err as a storage failure.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageFailure, err)
}

// readJSON best-effort reads path into out; a missing file is not an error.
func readJSON(path string, out any) error {
	b, err := readFile(path)
	if err != nil {
		return err
	}
	if b == nil { // file didn’t exist
		return nil
	}
	return json.Unmarshal(b, out)
}

// readFile reads the file at path into b; a missing file is not an error.
func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// writeJSON writes JSON via a temp file then rename.
func writeJSON(path string, v any, mode os.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, b, mode)
}

// writeFile writes bytes via a synced temp file, then atomically replaces the
// target and syncs the directory so the rename survives a crash.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Best-effort cleanup if anything fails before rename.
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems refuse to fsync a directory; the rename already
	// happened, so that is not fatal.
	_ = d.Sync()
	return nil
}

// appendJSONLine appends v as one JSON line to f and fsyncs before returning.
func appendJSONLine(f *os.File, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.Sync()
}

// scanJSONLines decodes each complete line of r with decode. A final line
// that is unterminated or fails to decode is a torn write from a crash: it is
// skipped and its offset returned so the caller can truncate it away. A bad
// line followed by more data is corruption and returned as an error.
func scanJSONLines(r io.Reader, decode func(line []byte) error) (good int64, torn bool, err error) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, rerr := br.ReadBytes('\n')
		if len(line) == 0 && rerr == io.EOF {
			return good, false, nil
		}
		if rerr != nil && rerr != io.EOF {
			return good, false, rerr
		}
		complete := rerr == nil
		body := bytes.TrimSpace(line)
		if len(body) == 0 {
			good += int64(len(line))
			continue
		}
		if !complete {
			return good, true, nil
		}
		if derr := decode(body); derr != nil {
			if _, perr := br.Peek(1); perr == io.EOF {
				return good, true, nil
			}
			return good, false, derr
		}
		good += int64(len(line))
	}
}

// openJournal opens path for appending and replays its lines through decode,
// trimming a torn tail.
func openJournal(path string, decode func(line []byte) error) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	good, torn, err := scanJSONLines(f, decode)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("replay %s: %w", filepath.Base(path), err)
	}
	if torn {
		if err := f.Truncate(good); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	if _, err := f.Seek(good, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}
