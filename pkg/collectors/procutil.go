// Package collectors implements the twelve concrete collectors of
// spec.md §2 ("Collector Suite... specified here only by their
// input/output contract") and SPEC_FULL.md §12, each sampling a
// /proc surface named in original_source/src/services/*.c and reducing
// it through pkg/entity's delta/top-N engine.
//
// procutil.go holds the shared /proc readers every collector in this
// package uses, grounded on original_source/src/common/proc_utils.c's
// proc_read_file/proc_parse_kv_kb/proc_read_status_kb/proc_iterate_pids.
// No third-party /proc-parsing library is used here (see DESIGN.md):
// the package's own reducers (pkg/entity, pkg/document) already form
// the parsing-to-ranking pipeline this daemon needs, and introducing a
// second, differently-shaped /proc abstraction alongside it for a
// handful of field reads would duplicate rather than simplify.
package collectors

import (
	"bufio"
	"bytes"
	"os"
	"strconv"
	"strings"
)

// maxProcFileSize bounds a single /proc read the same way
// proc_read_file's fixed caller buffer does -- collectors must not block
// indefinitely or allocate unboundedly on a surface that can be huge
// under adversarial conditions (spec §4.1: "forbidden to perform
// blocking operations longer than the tick interval").
const maxProcFileSize = 1 << 20

func readProcFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readAllBounded(f, maxProcFileSize)
}

func readAllBounded(f *os.File, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(&limitedReader{f, limit})
	return buf.Bytes(), err
}

type limitedReader struct {
	r *os.File
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, nil
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}

// parseKVKBLines scans buf for lines of the form "Key:   123 kB" (or
// "Key:   123") and returns a map of key to value. Mirrors
// proc_parse_kv_kb applied line-by-line over /proc/meminfo and
// /proc/pid/status, which share this exact shape.
func parseKVKBLines(buf []byte) map[string]int64 {
	out := make(map[string]int64, 32)
	sc := bufio.NewScanner(bytes.NewReader(buf))
	for sc.Scan() {
		line := sc.Text()
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		rest := strings.TrimSpace(line[idx+1:])
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		out[key] = v
	}
	return out
}

// parseVMStat scans a /proc/vmstat-shaped buffer of "key value" pairs,
// one per line.
func parseVMStat(buf []byte) map[string]int64 {
	out := make(map[string]int64, 64)
	sc := bufio.NewScanner(bytes.NewReader(buf))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		out[fields[0]] = v
	}
	return out
}

// listPIDs enumerates /proc for all-numeric entries, mirroring
// proc_iterate_pids's opendir/readdir loop over /proc.
func listPIDs() ([]int32, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	pids := make([]int32, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.ParseInt(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		pids = append(pids, int32(pid))
	}
	return pids, nil
}

// readStatusKB reads a single kB-valued field from /proc/<pid>/status,
// mirroring proc_read_status_kb. Returns ok=false if the process vanished
// or the field is absent -- callers treat this as "skip, not error" per
// spec §4.1's handling of processes that exit mid-scan.
func readStatusKB(pid int32, field string) (int64, bool) {
	buf, err := readProcFile(procPath(pid, "status"))
	if err != nil {
		return 0, false
	}
	v, ok := parseKVKBLines(buf)[field]
	return v, ok
}

// readComm returns the short command name from /proc/<pid>/comm.
func readComm(pid int32) (string, bool) {
	buf, err := readProcFile(procPath(pid, "comm"))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(buf)), true
}

// readCmdline returns the space-joined argv from /proc/<pid>/cmdline,
// falling back to the short comm name if cmdline is empty (a kernel
// thread has no argv), mirroring procmem.c's cmdline-then-comm fallback.
func readCmdline(pid int32) (string, bool) {
	buf, err := readProcFile(procPath(pid, "cmdline"))
	if err == nil && len(buf) > 0 {
		parts := bytes.Split(bytes.Trim(buf, "\x00"), []byte{0})
		joined := make([]string, 0, len(parts))
		for _, p := range parts {
			if len(p) > 0 {
				joined = append(joined, string(p))
			}
		}
		if s := strings.TrimSpace(strings.Join(joined, " ")); s != "" {
			return s, true
		}
	}
	return readComm(pid)
}

// procStat is the handful of /proc/<pid>/stat fields this package needs:
// state, and the two CPU-time counters in clock ticks.
type procStat struct {
	State byte
	UTime uint64
	STime uint64
}

// readStat parses /proc/<pid>/stat. The comm field may itself contain
// spaces and parentheses, so field splitting starts after the last ')'
// in the line, exactly as proc_utils.c's reader does.
func readStat(pid int32) (procStat, bool) {
	buf, err := readProcFile(procPath(pid, "stat"))
	if err != nil {
		return procStat{}, false
	}
	line := string(buf)
	close := strings.LastIndexByte(line, ')')
	if close < 0 || close+2 >= len(line) {
		return procStat{}, false
	}
	fields := strings.Fields(line[close+2:])
	// fields[0] = state, fields[11] = utime, fields[12] = stime (1-indexed
	// from state at position 3 in the full record; 0-indexed here from
	// state).
	if len(fields) < 14 {
		return procStat{}, false
	}
	ut, err1 := strconv.ParseUint(fields[11], 10, 64)
	st, err2 := strconv.ParseUint(fields[12], 10, 64)
	if err1 != nil || err2 != nil {
		return procStat{}, false
	}
	return procStat{State: fields[0][0], UTime: ut, STime: st}, true
}

// countOpenFDs counts entries under /proc/<pid>/fd without following or
// stat'ing each one -- a directory listing, matching fdmon.c's approach.
func countOpenFDs(pid int32) (int64, bool) {
	entries, err := os.ReadDir(procPath(pid, "fd"))
	if err != nil {
		return 0, false
	}
	return int64(len(entries)), true
}

func procPath(pid int32, leaf string) string {
	return "/proc/" + strconv.Itoa(int(pid)) + "/" + leaf
}

// stateDescription maps a /proc/<pid>/stat state character to a human
// description, mirroring procstat.c's state_to_desc.
func stateDescription(state byte) string {
	switch state {
	case 'R':
		return "running"
	case 'S':
		return "sleeping"
	case 'D':
		return "disk_sleep"
	case 'Z':
		return "zombie"
	case 'T':
		return "stopped"
	case 't':
		return "tracing_stop"
	case 'X':
		return "dead"
	case 'I':
		return "idle"
	default:
		return "unknown"
	}
}
