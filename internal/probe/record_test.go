package probe

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRecordLayout(t *testing.T) {
	// Hand-built wire image: pid at 0, ppid at 4, comm at 8, filename
	// at 24.
	raw := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(raw[0:4], 1234)
	binary.LittleEndian.PutUint32(raw[4:8], 100)
	copy(raw[8:], "true")
	copy(raw[24:], "/bin/true")

	rec, err := DecodeRecord(raw)
	require.NoError(t, err)
	require.Equal(t, uint32(1234), rec.PID)
	require.Equal(t, uint32(100), rec.PPID)
	require.Equal(t, "true", rec.CommString())
	require.Equal(t, "/bin/true", rec.FilenameString())
}

func TestDecodeRecordIgnoresPerfPadding(t *testing.T) {
	raw := make([]byte, RecordSize+4)
	binary.LittleEndian.PutUint32(raw[0:4], 7)
	raw[RecordSize] = 0xFF

	rec, err := DecodeRecord(raw)
	require.NoError(t, err)
	require.Equal(t, uint32(7), rec.PID)
}

func TestDecodeRecordShortSample(t *testing.T) {
	_, err := DecodeRecord(make([]byte, RecordSize-1))
	require.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	var rec Record
	rec.PID = 55
	rec.PPID = 1
	copy(rec.Comm[:], "sshd")
	copy(rec.Filename[:], "/usr/sbin/sshd")

	got, err := DecodeRecord(rec.Encode())
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestRecordSizeMatchesWireFormat(t *testing.T) {
	require.Equal(t, 280, RecordSize)
	require.Equal(t, 280, len((&Record{}).Encode()))
}
