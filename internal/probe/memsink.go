package probe

import "sync"

// MemorySink is an in-process stand-in for the kernel's per-CPU event
// channel: bounded capacity per CPU, append-only per-CPU order, drop on
// full. It backs the simulated source and the probe tests.
type MemorySink struct {
	mu       sync.Mutex
	capacity int
	percpu   map[int][]Record
	dropped  uint64
}

// NewMemorySink creates a sink holding at most capacity records per CPU.
func NewMemorySink(capacity int) *MemorySink {
	return &MemorySink{
		capacity: capacity,
		percpu:   make(map[int][]Record),
	}
}

// Publish appends a copy of rec to the given CPU's buffer, or drops it and
// returns ErrChannelFull when the buffer is at capacity.
func (s *MemorySink) Publish(cpu int, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.percpu[cpu]) >= s.capacity {
		s.dropped++
		return ErrChannelFull
	}
	s.percpu[cpu] = append(s.percpu[cpu], *rec)
	return nil
}

// Drain removes and returns all buffered records for one CPU, in emission
// order.
func (s *MemorySink) Drain(cpu int) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.percpu[cpu]
	delete(s.percpu, cpu)
	return out
}

// Dropped reports how many records were lost to full buffers.
func (s *MemorySink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
