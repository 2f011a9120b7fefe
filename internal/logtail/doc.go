// Package logtail follows a growing log file and previews its last lines.
//
// # Overview
//
// The STM-2 software appends one CSV line per measurement to its log file.
// This package provides the two ways the rest of the program looks at that
// file:
//
//  1. Follower: opened at the current end of file, returns each newly
//     appended complete line exactly once, in order
//  2. Preview: returns the last N lines so the operator can confirm they
//     picked the right file before starting a run
//
// # Following
//
// Follow seeks to the end of the file; nothing written before Follow is
// ever returned. Next never blocks. When no complete line is available it
// returns ErrNoData and the caller decides how long to wait before asking
// again:
//
//	f, err := logtail.Follow(path)
//	if err != nil {
//		return err
//	}
//	defer f.Close()
//	for {
//		line, err := f.Next()
//		if errors.Is(err, logtail.ErrNoData) {
//			time.Sleep(200 * time.Millisecond)
//			continue
//		}
//		if err != nil {
//			return err
//		}
//		handle(line)
//	}
//
// A line written in several bursts (the writer flushed mid-line) is held
// back until its newline arrives, so callers never see a fragment followed
// by its remainder.
//
// # File Changes
//
// At every end of file the path is checked again:
//
//   - Deleted or no longer accessible: Next returns an error wrapping the
//     stat failure (os.ErrNotExist for deletion). The follower is finished.
//   - Replaced by a different file: Next returns ErrReplaced.
//   - Truncated in place (size below the read offset): the follower rewinds
//     to the start and continues; the new content is all unseen.
//
// # Encoding
//
// Lines are returned as read, including the trailing newline. Decoding and
// sanitising is the parser's job. Preview strips invalid UTF-8 because its
// output goes straight to a terminal.
//
// # Resource Use
//
// Preview keeps a ring buffer of maxLines entries and scans the file once.
// A Follower holds one file descriptor and a 64 KiB read buffer; a single
// unterminated line is capped at 1 MiB and dropped beyond that.
package logtail
