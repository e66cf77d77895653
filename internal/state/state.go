// Package state implements the run-state controller (C5): LISTEN/RECORD
// transitions driven by PKTSTART/PKTSTOP, and the observation-start-time
// (MJD) computation. DESTIP changes do not move the run state: nothing in
// this repository switches it to or from IDLE.
package state

import (
	"math"
	"time"

	"github.com/wfarah/hpguppi-daq/common/go/mjd"
	"github.com/wfarah/hpguppi-daq/common/go/status"
)

// Run is one of the three observation run states.
type Run string

const (
	Idle   Run = "IDLE"
	Listen Run = "LISTEN"
	Record Run = "RECORD"
)

// Controller tracks the current run state and performs the PKTSTART/
// PKTSTOP/STTVALID bookkeeping on block advance.
type Controller struct {
	run Run
}

// NewController returns a Controller starting in the IDLE state.
func NewController() *Controller {
	return &Controller{run: Idle}
}

// Run returns the current run state.
func (c *Controller) Run() Run { return c.run }

// SetRun forcibly sets the run state. Nothing in this repository calls
// it; in particular internal/flow's DESTIP handling installs and removes
// flows without changing the run state or publishing DAQSTATE.
func (c *Controller) SetRun(r Run) { c.run = r }

// RoundPktstart rounds pktstart down to the nearest multiple of
// pktidxPerBlock.
func RoundPktstart(pktstart, pktidxPerBlock uint64) uint64 {
	if pktidxPerBlock == 0 {
		return pktstart
	}
	return pktstart - pktstart%pktidxPerBlock
}

// Tbin returns the per-sample time in seconds for the given channel
// bandwidth in MHz: 1e-6/|chanBWMHz|.
func Tbin(chanBWMHz float64) float64 {
	if chanBWMHz == 0 {
		return 0
	}
	return 1e-6 / math.Abs(chanBWMHz)
}

// ComputePktstop computes PKTSTOP from PKTSTART, DWELL (seconds), the
// channel bandwidth (MHz), and the per-block packet/pktidx geometry:
//
//	PKTSTOP = PKTSTART + pktidx_per_block * floor(DWELL / (tbin * pkt_per_block))
func ComputePktstop(pktstart uint64, dwellSeconds, chanBWMHz float64, pktPerBlock, pktidxPerBlock uint64) uint64 {
	tbin := Tbin(chanBWMHz)
	if tbin == 0 || pktPerBlock == 0 {
		return pktstart
	}
	dwellBlocks := math.Trunc(dwellSeconds / (tbin * float64(pktPerBlock)))
	if dwellBlocks < 0 {
		dwellBlocks = 0
	}
	return pktstart + pktidxPerBlock*uint64(dwellBlocks)
}

// CheckStartStop runs the PKTSTART/PKTSTOP/STTVALID logic for pktidx
// (which is always a block boundary: block_num * pktidx_per_block). It
// reads STTVALID/PKTSTART/PKTSTOP from dict, publishes DAQSTATE and (on
// LISTEN->RECORD entry) STT_IMJD/STT_SMJD/STT_OFFS/STTVALID, and returns
// the resulting run state.
func (c *Controller) CheckStartStop(dict *status.Dict, pktidx uint64) Run {
	sttvalid, _ := status.GetUint32(dict, "STTVALID")
	pktstart, _ := status.GetUint64(dict, "PKTSTART")
	pktstop, _ := status.GetUint64(dict, "PKTSTOP")

	if pktstart <= pktidx && pktidx < pktstop {
		dict.Set("DAQSTATE", string(Record))
		if sttvalid != 1 {
			pktntime, _ := status.GetUint32(dict, "PKTNTIME")
			chanBW, _ := status.GetFloat64(dict, "CHAN_BW")
			synctime, _ := status.GetUint64(dict, "SYNCTIME")

			var realtimeSecs float64
			if chanBW != 0 {
				realtimeSecs = float64(pktidx) * float64(pktntime) / (1e6 * math.Abs(chanBW))
			}

			whole := math.Round(realtimeSecs)
			frac := realtimeSecs - whole
			instant := time.Unix(int64(synctime)+int64(whole), int64(frac*1e9)).UTC()

			imjd, smjd, offs := mjd.FromUnix(instant)
			dict.SetAll(map[string]any{
				"STTVALID": uint32(1),
				"STT_IMJD": imjd,
				"STT_SMJD": smjd,
				"STT_OFFS": offs,
			})
		}
		c.run = Record
		return Record
	}

	dict.Set("DAQSTATE", string(Listen))
	if sttvalid != 0 {
		dict.Set("STTVALID", uint32(0))
	}
	c.run = Listen
	return Listen
}
