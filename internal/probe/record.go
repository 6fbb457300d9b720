// Package probe contains the exec-event probe: the fixed-shape record it
// emits, the BPF program that produces it in the kernel, and a userspace
// reference handler implementing the same algorithm over injected
// primitives so the probe semantics are testable without a kernel.
package probe

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// TaskCommLen is the kernel's fixed length for the scheduler's short
	// process name, including the terminating NUL.
	TaskCommLen = 16

	// FilenameLen is the fixed capacity for the executed binary's path.
	// Longer paths are truncated and remain NUL-terminated.
	FilenameLen = 256

	// RecordSize is the size of the wire record: two u32 ids followed by
	// the comm and filename buffers, no padding.
	RecordSize = 4 + 4 + TaskCommLen + FilenameLen
)

// Record is the fixed-layout exec event, one per exec syscall. Every field
// is zeroed before population, so a failed kernel read degrades the field
// to zero/empty rather than leaving garbage. Zero ppid and empty filename
// mean "unknown" to consumers, not "error".
type Record struct {
	PID      uint32
	PPID     uint32
	Comm     [TaskCommLen]byte
	Filename [FilenameLen]byte
}

// CommString returns comm up to the first NUL.
func (r *Record) CommString() string {
	return cString(r.Comm[:])
}

// FilenameString returns the filename up to the first NUL.
func (r *Record) FilenameString() string {
	return cString(r.Filename[:])
}

// DecodeRecord parses a raw perf sample into a Record. The sample may carry
// trailing alignment bytes added by the perf layer; anything past RecordSize
// is ignored. A short sample is an error.
func DecodeRecord(raw []byte) (Record, error) {
	var rec Record
	if len(raw) < RecordSize {
		return rec, fmt.Errorf("short exec record: %d bytes, want %d", len(raw), RecordSize)
	}
	rec.PID = binary.LittleEndian.Uint32(raw[0:4])
	rec.PPID = binary.LittleEndian.Uint32(raw[4:8])
	copy(rec.Comm[:], raw[8:8+TaskCommLen])
	copy(rec.Filename[:], raw[8+TaskCommLen:RecordSize])
	return rec, nil
}

// Encode renders the record in its wire layout. Used by the simulated
// source and by tests; the kernel path emits the same bytes directly.
func (r *Record) Encode() []byte {
	out := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(out[0:4], r.PID)
	binary.LittleEndian.PutUint32(out[4:8], r.PPID)
	copy(out[8:8+TaskCommLen], r.Comm[:])
	copy(out[8+TaskCommLen:], r.Filename[:])
	return out
}

func cString(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n == -1 {
		n = len(b)
	}
	return string(b[:n])
}
