// Package storelib builds SQLite connection strings shared by the
// read-write and read-only handles opened by internal/store.
package storelib

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ConnString builds a modernc.org/sqlite connection string with the
// pragmas the store requires: a busy timeout (avoids "database is locked"
// under concurrent access), foreign key enforcement, and WAL-friendly
// defaults. Honors CHATVAULT_LOCK_TIMEOUT for the busy timeout (default
// 30s). When readOnly is true the connection is opened read-only, per
// spec.md §4.3 ("read-only handle for queries, read-write handle for
// ingestion and jobs").
func ConnString(path string, readOnly bool) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	busy := 30 * time.Second
	if v := strings.TrimSpace(os.Getenv("CHATVAULT_LOCK_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			busy = d
		}
	}
	busyMs := int64(busy / time.Millisecond)

	if path == ":memory:" {
		// A bare ":memory:" gives every connection its own private
		// database, which would make the read-only handle see none of
		// what the read-write handle writes. cache=shared keeps both
		// handles pointed at the same in-memory database for the
		// lifetime of the process, the way an on-disk path naturally
		// would.
		return fmt.Sprintf(
			"file::memory:?cache=shared&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)",
			busyMs,
		)
	}

	mode := ""
	if readOnly {
		mode = "mode=ro&"
	}
	return fmt.Sprintf(
		"file:%s?%s_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)",
		path, mode, busyMs,
	)
}
