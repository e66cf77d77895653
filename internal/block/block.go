// Package block implements the sliding-window block assembler (C3): it
// owns the two working output blocks, routes packets to the correct one,
// and finalizes/advances/resets the window as packet indices cross block
// boundaries.
package block

import (
	"github.com/wfarah/hpguppi-daq/common/go/bitset"
)

// Block is one output block descriptor and its backing storage.
type Block struct {
	BlockIdx       int
	BlockNum       int64
	Npacket        uint32
	Ndrop          uint32
	PktsPerBlock   uint64
	PktidxPerBlock uint64

	// Header and Data are the slot's backing storage; nil until bound via
	// BindSlot, which Assembler.acquireFree calls when it reserves a slot.
	Header []byte
	Data   []byte

	// antennasSeen tracks which feng_ids contributed at least one packet
	// to this block, purely for diagnostics at finalize time (logged,
	// never required by the spec's drop-accounting invariants).
	antennasSeen bitset.TinyBitset
}

// BindSlot attaches the output ring slot storage reserved for this block.
func (b *Block) BindSlot(blockIdx int, header, data []byte) {
	b.BlockIdx = blockIdx
	b.Header = header
	b.Data = data
}

// Reset reinitializes the block for blockNum, clearing all per-block
// counters. pktsPerBlock/pktidxPerBlock are left untouched if zero (i.e.
// unchanged since obs-info hasn't been recomputed).
func (b *Block) Reset(blockNum int64, pktsPerBlock, pktidxPerBlock uint64) {
	b.BlockNum = blockNum
	if pktsPerBlock > 0 {
		b.PktsPerBlock = pktsPerBlock
	}
	if pktidxPerBlock > 0 {
		b.PktidxPerBlock = pktidxPerBlock
	}
	b.Npacket = 0
	b.Ndrop = 0
	b.antennasSeen = bitset.TinyBitset{}
}

// RecordPacket increments the block's packet count and marks fengID as
// having contributed, after the packet has already been validated and
// scattered by the caller.
func (b *Block) RecordPacket(fengID uint16) {
	b.Npacket++
	b.antennasSeen.Insert(uint32(fengID))
}

// AntennaCount returns the number of distinct feng_ids that contributed to
// this block so far.
func (b *Block) AntennaCount() uint {
	return b.antennasSeen.Count()
}

// FinalizeStats computes NDROP per §4.3's saturating rule: NDROP = max(0,
// pkts_per_block - npacket). Duplicates can push npacket above
// pkts_per_block, in which case NDROP saturates to zero rather than going
// negative.
func (b *Block) FinalizeStats() (npkt uint32, ndrop uint32) {
	if uint64(b.Npacket) >= b.PktsPerBlock {
		b.Ndrop = 0
	} else {
		b.Ndrop = uint32(b.PktsPerBlock - uint64(b.Npacket))
	}
	return b.Npacket, b.Ndrop
}

// PKTIDX returns the header PKTIDX value for this block: block_num *
// pktidx_per_block.
func (b *Block) PKTIDX() uint64 {
	return uint64(b.BlockNum) * b.PktidxPerBlock
}
