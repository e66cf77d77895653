// Package scatter implements the strided packet-to-block transpose (C4):
// copying one packet's payload, which is laid out [time, channel, pol]
// (pol fastest), into its GUPPI RAW destination rectangle within a block
// laid out [FID, stream, channel, time, pol].
package scatter

import (
	"encoding/binary"
	"fmt"

	"github.com/wfarah/hpguppi-daq/internal/obsinfo"
	"github.com/wfarah/hpguppi-daq/internal/pktparse"
)

// sampleSize is the size in bytes of one (channel, time) sample: two
// polarizations packed as a single big-endian uint16.
const sampleSize = 2

// Geometry carries the per-block stride constants derived once per
// obs-info refresh, so the hot path never recomputes them per packet.
type Geometry struct {
	PktNchan       uint32
	PktNtime       uint32
	Nstrm          uint32
	Schan          int32
	PktidxPerBlock uint64

	ostride      uint64
	streamStride uint64
	fidStride    uint64
	pktidxStride uint64
}

// NewGeometry derives a Geometry from the current obs-info and
// pktidx_per_block, matching ata_snap_pktidx_per_block's downstream
// consumer copy_packet_data_to_databuf.
func NewGeometry(info obsinfo.Info, pktidxPerBlock uint64) Geometry {
	g := Geometry{
		PktNchan:       info.PktNchan,
		PktNtime:       info.PktNtime,
		Nstrm:          info.Nstrm,
		Schan:          info.Schan,
		PktidxPerBlock: pktidxPerBlock,
	}
	// ostride: spacing, in samples, from one channel to the next for a
	// given FID/stream/pktidx value. Equal to NTIME == pktidx_per_block *
	// pkt_ntime.
	g.ostride = pktidxPerBlock * uint64(info.PktNtime)
	// streamStride: size of a single stream for a single FID across all
	// NTIME samples and all channels in that stream.
	g.streamStride = uint64(info.PktNchan) * uint64(info.PktNtime) * pktidxPerBlock
	// fidStride: size of all streams for a single FID.
	g.fidStride = g.streamStride * uint64(info.Nstrm)
	// pktidxStride: size of a single channel for a single pktidx value
	// (i.e. for a single packet).
	g.pktidxStride = uint64(info.PktNtime)
	return g
}

// Scatter copies desc's payload into data (a block's raw sample buffer)
// at the position determined by desc.FengID/FengChan/Pktidx. data is
// addressed in samples (sampleSize bytes each); g.ostride etc. are all in
// units of samples.
//
// payload must hold exactly pkt_nchan*pkt_ntime samples in [time, channel]
// order (pol packed per-sample). Returns an error if payload is short or
// the destination offset would run past data.
//
// Samples are written one at a time with ordinary stores; Go has no
// portable non-temporal-store primitive, so none is used here. A
// GOARCH-specific assembly kernel is the place where one would go.
func Scatter(g Geometry, desc pktparse.Descriptor, payload []byte, data []byte) error {
	wantPayload := int(g.PktNchan) * int(g.PktNtime) * sampleSize
	if len(payload) < wantPayload {
		return fmt.Errorf("scatter: payload too short: have %d bytes, want %d", len(payload), wantPayload)
	}

	stream := (uint64(desc.FengChan) - uint64(g.Schan)) / uint64(g.PktNchan)

	// pktidxStride-relative offset: this packet's pktidx relative to the
	// start of the block it belongs to, in units of one packet period.
	var blockRelative uint64
	if g.PktidxPerBlock > 0 {
		blockRelative = desc.Pktidx % g.PktidxPerBlock
	}

	dstBase := uint64(desc.FengID)*g.fidStride +
		stream*g.streamStride +
		blockRelative*g.pktidxStride

	dstSamples := len(data) / sampleSize
	srcOff := 0
	for t := uint32(0); t < g.PktNtime; t++ {
		dst := dstBase
		for c := uint32(0); c < g.PktNchan; c++ {
			if dst >= uint64(dstSamples) {
				return fmt.Errorf("scatter: destination offset %d out of range (block holds %d samples)", dst, dstSamples)
			}
			sample := binary.BigEndian.Uint16(payload[srcOff : srcOff+2])
			binary.BigEndian.PutUint16(data[dst*sampleSize:dst*sampleSize+2], sample)
			dst += g.ostride
			srcOff += sampleSize
		}
		dstBase++
	}
	return nil
}
