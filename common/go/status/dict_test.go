package status

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDictSetGet(t *testing.T) {
	d := New()
	d.Set("DAQSTATE", "IDLE")
	d.Set("PKTIDX", uint64(42))

	v, ok := GetString(d, "DAQSTATE")
	require.True(t, ok)
	require.Equal(t, "IDLE", v)

	n, ok := GetUint64(d, "PKTIDX")
	require.True(t, ok)
	require.Equal(t, uint64(42), n)

	_, ok = GetUint64(d, "MISSING")
	require.False(t, ok)
}

func TestDictSnapshotIsIndependentCopy(t *testing.T) {
	d := New()
	d.Set("NANTS", uint32(4))

	snap := d.Snapshot()
	require.Equal(t, uint32(4), snap["NANTS"])

	d.Set("NANTS", uint32(8))
	require.Equal(t, uint32(4), snap["NANTS"], "snapshot must not observe later writes")
}

func TestDictSetAll(t *testing.T) {
	d := New()
	d.SetAll(map[string]any{
		"NPKT":  uint32(1),
		"NDROP": uint32(0),
	})

	n, ok := GetUint32(d, "NPKT")
	require.True(t, ok)
	require.Equal(t, uint32(1), n)
}
