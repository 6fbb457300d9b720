package probe

import "errors"

// ErrChannelFull is returned by a Sink whose per-CPU buffer has no room.
// The handler ignores it: a full channel drops the record, it never blocks
// emission or surfaces an error to the traced process.
var ErrChannelFull = errors.New("probe: event channel full")

// DataLoc is a tracepoint "data location" descriptor: the low 16 bits are a
// byte offset, relative to the trigger context base, where a variable-length
// string argument begins. The high 16 bits carry the length and must be
// ignored when computing the offset.
type DataLoc uint32

// Offset recovers the byte offset, masking strictly to the low 16 bits.
func (d DataLoc) Offset() uint16 {
	return uint16(d & 0xFFFF)
}

// filenameLocOffset is where the filename's data-location descriptor sits in
// the sched_process_exec trigger context: after the 8 unused bytes of
// tracepoint common fields.
const filenameLocOffset = 8

// TriggerContext is the raw argument buffer the tracing framework hands to
// the probe: 8 unused bytes, a 4-byte data-location descriptor for the
// filename, a 4-byte pid and a 4-byte old pid, followed by variable-length
// payload. Only the descriptor is read by the probe.
type TriggerContext struct {
	raw []byte
}

// NewTriggerContext wraps a raw tracepoint buffer.
func NewTriggerContext(raw []byte) *TriggerContext {
	return &TriggerContext{raw: raw}
}

// FilenameLoc reads the filename data-location descriptor. An undersized
// buffer yields a zero descriptor, mirroring a fault-tolerant kernel read.
func (c *TriggerContext) FilenameLoc() DataLoc {
	if len(c.raw) < filenameLocOffset+4 {
		return 0
	}
	b := c.raw[filenameLocOffset:]
	return DataLoc(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// CopyString performs a bounded, fault-tolerant string copy from the context
// base plus off into dst. It stops at the first NUL or at len(dst)-1 bytes,
// always NUL-terminates, and leaves dst zeroed when the source is out of
// bounds. dst is assumed pre-zeroed, as the record always is.
func (c *TriggerContext) CopyString(off uint16, dst []byte) {
	if len(dst) == 0 || int(off) >= len(c.raw) {
		return
	}
	src := c.raw[off:]
	n := 0
	for n < len(dst)-1 && n < len(src) && src[n] != 0 {
		dst[n] = src[n]
		n++
	}
	dst[n] = 0
}

// TaskReader exposes the per-invocation kernel state the probe reads from
// the current task. Implementations must be fault tolerant: ParentTgid
// reports ok=false instead of failing when the parent relation cannot be
// read, and Comm cannot fail by construction.
type TaskReader interface {
	// PidTgid returns the combined pid/tgid value; the thread-group id
	// occupies the upper 32 bits.
	PidTgid() uint64

	// Comm returns the task's short name, NUL-padded to 16 bytes.
	Comm() [TaskCommLen]byte

	// ParentTgid follows the real-parent relation and reads its
	// thread-group id.
	ParentTgid() (uint32, bool)
}

// Sink is the event channel the probe publishes into: one operation,
// bounded capacity per CPU, drop on full, never blocking. The real channel
// is the kernel's per-CPU perf event array; tests and the simulated source
// use MemorySink.
type Sink interface {
	Publish(cpu int, rec *Record) error
}

// HandleExec is the probe body: the userspace reference for the BPF program
// assembled in ExecProgramSpec. It runs to completion with no allocation
// beyond its fixed-size stack record, attempts each field exactly once, and
// absorbs every read failure into a zero/empty field. The return value is
// diagnostic only.
func HandleExec(ctx *TriggerContext, task TaskReader, cpu int, sink Sink) int {
	var rec Record

	rec.PID = uint32(task.PidTgid() >> 32)
	if ppid, ok := task.ParentTgid(); ok {
		rec.PPID = ppid
	}
	rec.Comm = task.Comm()
	ctx.CopyString(ctx.FilenameLoc().Offset(), rec.Filename[:])

	// Channel full means the record is dropped, not retried.
	_ = sink.Publish(cpu, &rec)
	return 0
}
