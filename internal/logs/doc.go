// Package logs reads the daemon's log files for `skelrec logs`.
//
// Last reads the trailing lines of a file with bounded memory, and Follow
// polls from a byte offset, handing each new line to a callback until the
// context ends. Both tolerate a log file that does not exist yet, since the
// daemon creates it on first start. A truncated or rotated file restarts
// the offset from zero.
package logs
