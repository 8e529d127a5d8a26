package runlog

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hamed0406/keepalive/internal/domain"
)

// Line is one raw log line. OK reports whether a timestamp could be parsed;
// when it is false only Raw is meaningful.
type Line struct {
	Raw   string          `json:"raw"`
	OK    bool            `json:"parsed"`
	Entry domain.LogEntry `json:"entry"`
}

// ParseLine splits "[ts] message". Anything that does not start with a
// bracketed timestamp in domain.TimeLayout comes back with OK == false.
func ParseLine(raw string) Line {
	out := Line{Raw: raw}
	if !strings.HasPrefix(raw, "[") {
		return out
	}
	end := strings.IndexByte(raw, ']')
	if end < 0 {
		return out
	}
	ts, err := time.ParseInLocation(domain.TimeLayout, raw[1:end], time.Local)
	if err != nil {
		return out
	}
	out.OK = true
	out.Entry = domain.LogEntry{
		Time:    ts,
		Message: strings.TrimPrefix(raw[end+1:], " "),
	}
	return out
}

type PruneStats struct {
	Kept        int   `json:"kept"`
	Removed     int   `json:"removed"`
	BytesBefore int64 `json:"bytes_before"`
	BytesAfter  int64 `json:"bytes_after"`
}

// Prune rewrites the log keeping only lines newer than now-window, plus every
// line whose timestamp cannot be parsed. Order is preserved and the rewrite
// goes through a temp file and rename. A missing log is not an error.
func (l *Log) Prune(window time.Duration) (PruneStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var st PruneStats
	lines, fi, err := readLines(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	st.BytesBefore = fi.Size()

	cutoff := l.clock.Now().Add(-window)
	kept := make([]string, 0, len(lines))
	for _, raw := range lines {
		p := ParseLine(raw)
		if p.OK && p.Entry.Time.Before(cutoff) {
			st.Removed++
			continue
		}
		kept = append(kept, raw)
	}
	st.Kept = len(kept)

	n, err := rewrite(l.path, fi.Mode().Perm(), kept)
	if err != nil {
		return st, err
	}
	st.BytesAfter = n
	return st, nil
}

// Tail returns the last n lines of the log (all of them when n <= 0).
func (l *Log) Tail(n int) ([]Line, error) {
	l.mu.Lock()
	lines, _, err := readLines(l.path)
	l.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return []Line{}, nil
	}
	if err != nil {
		return nil, err
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]Line, 0, len(lines))
	for _, raw := range lines {
		out = append(out, ParseLine(raw))
	}
	return out, nil
}

func readLines(path string) ([]string, fs.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}

	// No line length limit: oversized junk lines are kept like any other
	// unparsable line.
	var lines []string
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			lines = append(lines, strings.TrimSuffix(line, "\r"))
		}
		if errors.Is(err, io.EOF) {
			return lines, fi, nil
		}
		if err != nil {
			return nil, nil, err
		}
	}
}

// rewrite replaces path with lines, keeping the file mode perm.
func rewrite(path string, perm fs.FileMode, lines []string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	var n int64
	for _, line := range lines {
		c, _ := w.WriteString(line + "\n")
		n += int64(c)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return 0, err
	}
	return n, os.Rename(tmp.Name(), path)
}
