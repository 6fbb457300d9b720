package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/execmon/internal/alerts"
	"github.com/your-org/execmon/internal/config"
	"github.com/your-org/execmon/internal/detect"
	"github.com/your-org/execmon/internal/model"
	"github.com/your-org/execmon/internal/probe"
)

// scriptedSource replays a fixed set of records, then reports closure.
type scriptedSource struct {
	recs []Record
}

func (s *scriptedSource) Read() (Record, error) {
	if len(s.recs) == 0 {
		return Record{}, os.ErrClosed
	}
	rec := s.recs[0]
	s.recs = s.recs[1:]
	return rec, nil
}

func (s *scriptedSource) Close() error { return nil }

// memStore collects inserted events.
type memStore struct {
	events []model.Event
}

func (m *memStore) InsertExecEvent(ev model.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func newTestWriter(t *testing.T) *alerts.FileWriter {
	t.Helper()
	w, err := alerts.NewFileWriter(filepath.Join(t.TempDir(), "alerts.jsonl"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func execSample(pid, ppid uint32, comm, filename string) []byte {
	var rec probe.Record
	rec.PID = pid
	rec.PPID = ppid
	copy(rec.Comm[:probe.TaskCommLen-1], comm)
	copy(rec.Filename[:probe.FilenameLen-1], filename)
	return rec.Encode()
}

func TestRunDecodesAndStoresEvents(t *testing.T) {
	src := &scriptedSource{recs: []Record{
		{CPU: 0, RawSample: execSample(42, 1, "true", "/bin/true")},
		{CPU: 1, RawSample: execSample(43, 0, "ls", "")},
		{CPU: 0, RawSample: []byte{1, 2, 3}}, // undecodable, skipped
		{CPU: 0, LostSamples: 5},             // drop notice, no sample
	}}

	eng, err := detect.NewEngine(&config.Config{})
	require.NoError(t, err)

	st := &memStore{}
	c := New(src, zap.NewNop())
	require.NoError(t, c.Run(context.Background(), eng, newTestWriter(t), st))

	require.Len(t, st.events, 2)
	require.Equal(t, uint32(42), st.events[0].Pid)
	require.Equal(t, uint32(1), st.events[0].Ppid)
	require.Equal(t, "true", st.events[0].Comm)
	require.Equal(t, "/bin/true", st.events[0].Filename)

	// Zero ppid and empty filename flow through as unknown, not errors.
	require.Equal(t, uint32(0), st.events[1].Ppid)
	require.Equal(t, "", st.events[1].Filename)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	src := NewSimSource(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	eng, err := detect.NewEngine(&config.Config{})
	require.NoError(t, err)

	done := make(chan error, 1)
	c := New(src, zap.NewNop())
	go func() {
		done <- c.Run(ctx, eng, newTestWriter(t), nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop on cancel")
	}
}

func TestSimSourceProducesDecodableRecords(t *testing.T) {
	src := NewSimSource(time.Millisecond)
	defer src.Close()

	rec, err := src.Read()
	require.NoError(t, err)

	pr, err := probe.DecodeRecord(rec.RawSample)
	require.NoError(t, err)
	require.Equal(t, uint32(os.Getpid()), pr.PID)
	require.Equal(t, "execmon-sim", pr.CommString())
	require.Contains(t, pr.FilenameString(), "/usr/bin/sim-exec-")
}
