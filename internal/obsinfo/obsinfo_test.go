package obsinfo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/wfarah/hpguppi-daq/common/go/status"
)

func TestValidRequiresDivisibility(t *testing.T) {
	valid := Info{Fenchan: 128, Nants: 2, Nstrm: 1, PktNtime: 16, PktNchan: 64, Schan: 0}
	require.True(t, valid.Valid())

	invalid := Info{Fenchan: 100, Nants: 2, Nstrm: 1, PktNtime: 16, PktNchan: 64}
	require.False(t, invalid.Valid())
}

func TestValidRejectsZeroFields(t *testing.T) {
	require.False(t, Info{}.Valid())
}

func TestDeriveMatchesSpecScenario(t *testing.T) {
	// S1 scenario geometry: nants=2, nstrm=1, pkt_nchan=64, pkt_ntime=16,
	// pktidx_per_block=4.
	info := Info{Fenchan: 64, Nants: 2, Nstrm: 1, PktNtime: 16, PktNchan: 64}
	require.True(t, info.Valid())

	pktPayloadBytes := uint32(64 * 16 * 2)
	maxBlockBytes := int64(pktPayloadBytes) * 2 * 1 * 4 // exactly 4 pktidx_per_block worth

	d := info.Derive(maxBlockBytes)
	want := Derived{
		ObsNChan:           128,
		PktPayloadBytes:    pktPayloadBytes,
		PktPerBlock:        8,
		PktidxPerBlock:     4,
		EffectiveBlockSize: int32(maxBlockBytes),
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("Derive() mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheRefreshPublishesObsInfo(t *testing.T) {
	dict := status.New()
	dict.SetAll(map[string]any{
		"FENCHAN":  uint32(64),
		"NANTS":    uint32(2),
		"NSTRM":    uint32(1),
		"PKTNTIME": uint32(16),
		"PKTNCHAN": uint32(64),
		"SCHAN":    int32(0),
	})

	c := NewCache(int64(64 * 16 * 2 * 2 * 1 * 4))
	c.Refresh(dict)
	require.True(t, c.Valid())

	v, ok := status.GetString(dict, "OBSINFO")
	require.True(t, ok)
	require.Equal(t, "VALID", v)

	piperblk, ok := status.GetUint32(dict, "PIPERBLK")
	require.True(t, ok)
	require.Equal(t, uint32(4), piperblk)
}

func TestCacheRefreshMarksInvalid(t *testing.T) {
	dict := status.New()
	dict.Set("NANTS", uint32(0))

	c := NewCache(1 << 20)
	c.Refresh(dict)
	require.False(t, c.Valid())

	v, _ := status.GetString(dict, "OBSINFO")
	require.Equal(t, "INVALID", v)
}
