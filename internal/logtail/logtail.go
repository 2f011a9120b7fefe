package logtail

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	readBufferSize = 64 * 1024
	maxLineBytes   = 1024 * 1024
)

var (
	// ErrNoData means no complete line is available yet.
	ErrNoData = errors.New("logtail: no complete line available")
	// ErrReplaced means the path now names a different file.
	ErrReplaced = errors.New("logtail: file was replaced")
)

// Follower yields lines appended to a file after it was opened. It is not
// safe for concurrent use; one goroutine owns it.
type Follower struct {
	path    string
	file    *os.File
	info    os.FileInfo
	reader  *bufio.Reader
	offset  int64
	pending []byte
	// discard drops bytes through the next newline; set when the follower
	// starts or resyncs in the middle of a line.
	discard bool
}

// Follow opens path and positions the follower at its current end.
func Follow(path string) (*Follower, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat log: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("open log: %s is a directory", path)
	}
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("seek log: %w", err)
	}
	midLine, err := endsMidLine(file, end)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &Follower{
		path:    path,
		file:    file,
		info:    info,
		reader:  bufio.NewReaderSize(file, readBufferSize),
		offset:  end,
		discard: midLine,
	}, nil
}

// endsMidLine reports whether the byte before end is not a newline.
func endsMidLine(file *os.File, end int64) (bool, error) {
	if end == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, end-1); err != nil {
		return false, fmt.Errorf("read log: %w", err)
	}
	return last[0] != '\n', nil
}

// Path returns the followed path.
func (f *Follower) Path() string { return f.path }

// Next returns the next complete line including its newline. It returns
// ErrNoData when the writer has not finished a line yet.
func (f *Follower) Next() (string, error) {
	if f.file == nil {
		return "", fmt.Errorf("read log: %w", os.ErrClosed)
	}

	for {
		chunk, err := f.reader.ReadBytes('\n')
		f.offset += int64(len(chunk))
		if err == nil {
			if f.discard {
				f.discard = false
				continue
			}
			if len(f.pending) == 0 {
				return string(chunk), nil
			}
			line := string(f.pending) + string(chunk)
			f.pending = f.pending[:0]
			return line, nil
		}
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read log: %w", err)
		}

		if !f.discard {
			f.pending = append(f.pending, chunk...)
			if len(f.pending) > maxLineBytes {
				f.pending = f.pending[:0]
				f.discard = true
			}
		}
		if err := f.check(); err != nil {
			return "", err
		}
		return "", ErrNoData
	}
}

// check looks at the path again once the reader has caught up.
func (f *Follower) check() error {
	info, err := os.Stat(f.path)
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}
	if !os.SameFile(info, f.info) {
		return fmt.Errorf("%w: %s", ErrReplaced, f.path)
	}
	if info.Size() < f.offset {
		if _, err := f.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind log: %w", err)
		}
		f.reader.Reset(f.file)
		f.offset = 0
		f.pending = f.pending[:0]
		f.discard = false
	}
	return nil
}

// Close releases the file handle. It is safe to call more than once.
func (f *Follower) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return fmt.Errorf("close log: %w", err)
	}
	return nil
}

// Preview returns at most maxLines non-empty lines from the end of the file
// at path. A missing file yields no lines and no error.
func Preview(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, readBufferSize), maxLineBytes)
	count := 0
	idx := 0
	for scanner.Scan() {
		raw := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		ring[idx] = strings.ToValidUTF8(string(raw), "")
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}
