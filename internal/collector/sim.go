package collector

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/your-org/execmon/internal/probe"
)

// SimSource feeds the pipeline synthetic exec events produced by the
// userspace reference handler. It exists for hosts where the probe cannot
// attach (no BTF, no privileges) and for exercising the daemon end to end
// without touching the kernel.
type SimSource struct {
	interval time.Duration
	sink     *probe.MemorySink
	seq      uint32

	mu     sync.Mutex
	closed chan struct{}
}

// NewSimSource emits one synthetic event per interval.
func NewSimSource(interval time.Duration) *SimSource {
	return &SimSource{
		interval: interval,
		sink:     probe.NewMemorySink(64),
		closed:   make(chan struct{}),
	}
}

// simTask is a fault-free TaskReader describing the daemon itself.
type simTask struct {
	pid  uint32
	ppid uint32
	comm string
}

func (t simTask) PidTgid() uint64 {
	return uint64(t.pid)<<32 | uint64(t.pid)
}

func (t simTask) Comm() [probe.TaskCommLen]byte {
	var c [probe.TaskCommLen]byte
	copy(c[:probe.TaskCommLen-1], t.comm)
	return c
}

func (t simTask) ParentTgid() (uint32, bool) {
	return t.ppid, true
}

func (s *SimSource) Read() (Record, error) {
	select {
	case <-s.closed:
		return Record{}, os.ErrClosed
	case <-time.After(s.interval):
	}

	s.mu.Lock()
	s.seq++
	filename := fmt.Sprintf("/usr/bin/sim-exec-%d", s.seq)
	s.mu.Unlock()

	// Trigger context: 8 unused bytes, data-location descriptor, pid,
	// old pid, then the filename payload at offset 16.
	ctx := make([]byte, 16+len(filename)+1)
	binary.LittleEndian.PutUint32(ctx[8:12], uint32(len(filename)+1)<<16|16)
	copy(ctx[16:], filename)

	task := simTask{
		pid:  uint32(os.Getpid()),
		ppid: uint32(os.Getppid()),
		comm: "execmon-sim",
	}
	probe.HandleExec(probe.NewTriggerContext(ctx), task, 0, s.sink)

	recs := s.sink.Drain(0)
	if len(recs) == 0 {
		// Sink was full; the event is gone, same as the kernel channel.
		return Record{CPU: 0, LostSamples: 1}, nil
	}
	return Record{CPU: 0, RawSample: recs[0].Encode()}, nil
}

func (s *SimSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}
