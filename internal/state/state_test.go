package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wfarah/hpguppi-daq/common/go/status"
)

func TestRoundPktstart(t *testing.T) {
	require.Equal(t, uint64(64), RoundPktstart(67, 4))
	require.Equal(t, uint64(64), RoundPktstart(64, 4))
}

func TestComputePktstopScenarioS5(t *testing.T) {
	// S5: CHAN_BW=0.25 MHz, PKTNTIME=16, PKTSTART=64, DWELL=1.024s,
	// pktidx_per_block=4 => pkt_per_block = pktidx_per_block*nants*nstrm.
	// Use nants*nstrm=8 (pkt_per_block=32) as a representative geometry.
	pktPerBlock := uint64(32)
	pktidxPerBlock := uint64(4)

	tbin := Tbin(0.25)
	require.InDelta(t, 4e-6, tbin, 1e-12)

	stop := ComputePktstop(64, 1.024, 0.25, pktPerBlock, pktidxPerBlock)
	dwellBlocks := uint64(1.024 / (tbin * float64(pktPerBlock)))
	require.Equal(t, 64+pktidxPerBlock*dwellBlocks, stop)
}

func TestCheckStartStopEntersRecordAndSetsSTT(t *testing.T) {
	dict := status.New()
	dict.SetAll(map[string]any{
		"STTVALID": uint32(0),
		"PKTSTART": uint64(64),
		"PKTSTOP":  uint64(128),
		"PKTNTIME": uint32(16),
		"CHAN_BW":  0.25,
		"SYNCTIME": uint64(1_700_000_000),
	})

	c := NewController()
	run := c.CheckStartStop(dict, 64)
	require.Equal(t, Record, run)

	sttvalid, _ := status.GetUint32(dict, "STTVALID")
	require.Equal(t, uint32(1), sttvalid)

	daqstate, _ := status.GetString(dict, "DAQSTATE")
	require.Equal(t, "RECORD", daqstate)

	_, ok := status.GetUint32(dict, "STT_IMJD")
	require.True(t, ok)
}

func TestCheckStartStopReturnsToListenAndClearsSTTVALID(t *testing.T) {
	dict := status.New()
	dict.SetAll(map[string]any{
		"STTVALID": uint32(1),
		"PKTSTART": uint64(64),
		"PKTSTOP":  uint64(128),
	})

	c := NewController()
	run := c.CheckStartStop(dict, 200)
	require.Equal(t, Listen, run)

	sttvalid, _ := status.GetUint32(dict, "STTVALID")
	require.Equal(t, uint32(0), sttvalid)
}

func TestSTTValidDisciplineProperty(t *testing.T) {
	dict := status.New()
	dict.SetAll(map[string]any{
		"PKTSTART": uint64(0),
		"PKTSTOP":  uint64(10),
	})
	c := NewController()

	for _, pktidx := range []uint64{0, 5, 10, 20} {
		run := c.CheckStartStop(dict, pktidx)
		sttvalid, _ := status.GetUint32(dict, "STTVALID")
		if run == Record {
			require.Equal(t, uint32(1), sttvalid)
		} else {
			require.Equal(t, uint32(0), sttvalid)
		}
	}
}
