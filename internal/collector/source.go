package collector

import (
	"errors"
	"fmt"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/perf"
	"golang.org/x/sys/unix"

	"github.com/your-org/execmon/internal/probe"
)

// Record is one raw sample from an event source, mirroring the essential
// fields of a perf record so the pipeline stays testable without a kernel.
type Record struct {
	// CPU is the processor the record was emitted on. Per-CPU order is
	// emission order; there is no order across CPUs.
	CPU int
	// RawSample is the wire-format exec record.
	RawSample []byte
	// LostSamples counts records dropped since the previous read because
	// the per-CPU buffer was full.
	LostSamples uint64
}

// Source yields exec event records. Read blocks until a record is
// available or the source is closed, in which case it returns os.ErrClosed.
type Source interface {
	Read() (Record, error)
	Close() error
}

// EBPFSource is the real event source: it resolves kernel struct offsets,
// assembles and loads the probe, attaches it to sched:sched_process_exec
// and polls the perf event channel. Any structural mismatch with the
// running kernel surfaces here, before a single event is processed.
type EBPFSource struct {
	coll   *ebpf.Collection
	tp     link.Link
	reader *perf.Reader
}

// NewEBPFSource loads and attaches the probe. perCPUBuffer is the size in
// bytes of each CPU's perf buffer; it bounds how far the consumer may lag
// before records are dropped.
func NewEBPFSource(perCPUBuffer int) (*EBPFSource, error) {
	if err := raiseRlimit(); err != nil {
		return nil, err
	}

	off, err := probe.LoadTaskOffsets()
	if err != nil {
		return nil, fmt.Errorf("resolve task offsets: %w", err)
	}

	coll, err := ebpf.NewCollection(probe.CollectionSpec(off))
	if err != nil {
		return nil, fmt.Errorf("load probe collection: %w", err)
	}

	prog, ok := coll.Programs["trace_exec"]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("BPF program 'trace_exec' not found")
	}
	events, ok := coll.Maps[probe.EventsMapName]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("BPF map %q not found", probe.EventsMapName)
	}

	tp, err := link.Tracepoint("sched", "sched_process_exec", prog, nil)
	if err != nil {
		coll.Close()
		return nil, fmt.Errorf("attach sched_process_exec tracepoint: %w", err)
	}

	reader, err := perf.NewReader(events, perCPUBuffer)
	if err != nil {
		tp.Close()
		coll.Close()
		return nil, fmt.Errorf("create perf reader: %w", err)
	}

	return &EBPFSource{coll: coll, tp: tp, reader: reader}, nil
}

func (s *EBPFSource) Read() (Record, error) {
	rec, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, perf.ErrClosed) {
			return Record{}, os.ErrClosed
		}
		return Record{}, err
	}
	return Record{
		CPU:         rec.CPU,
		RawSample:   rec.RawSample,
		LostSamples: rec.LostSamples,
	}, nil
}

func (s *EBPFSource) Close() error {
	s.reader.Close()
	s.tp.Close()
	s.coll.Close()
	return nil
}

func raiseRlimit() error {
	var r unix.Rlimit
	r.Cur = 1 << 30
	r.Max = 1 << 30
	if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &r); err != nil {
		return fmt.Errorf("setrlimit RLIMIT_MEMLOCK: %w", err)
	}
	return nil
}
