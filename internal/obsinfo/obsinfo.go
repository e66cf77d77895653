// Package obsinfo implements the observation-info cache (C2): it holds and
// validates the observation geometry read from the status dictionary and
// derives the quantities the block assembler and scatter kernel need.
package obsinfo

import (
	"github.com/wfarah/hpguppi-daq/common/go/status"
)

// Info is the raw observation geometry as read from the status dictionary.
type Info struct {
	Fenchan  uint32
	Nants    uint32
	Nstrm    uint32
	PktNtime uint32
	PktNchan uint32
	Schan    int32
}

// Derived holds the quantities computed from a valid Info plus the
// per-output-block byte budget.
type Derived struct {
	ObsNChan            uint32
	PktPayloadBytes      uint32
	PktPerBlock         uint64
	PktidxPerBlock      uint64
	EffectiveBlockSize  int32
}

// Valid reports whether info is valid: every field is nonzero/present and
// pkt_nchan*nstrm evenly divides fenchan.
func (i Info) Valid() bool {
	if i.Fenchan == 0 || i.Nants == 0 || i.Nstrm == 0 || i.PktNtime == 0 || i.PktNchan == 0 {
		return false
	}
	chunk := i.PktNchan * i.Nstrm
	return chunk != 0 && i.Fenchan%chunk == 0
}

// Derive computes obsnchan, pktidx_per_block and effective_block_size from
// a valid Info and the maximum block payload budget in bytes.
//
// pkt_payload_bytes is the size, in bytes, of one packet's sample payload:
// pkt_nchan*pkt_ntime samples, 2 bytes per sample (one big-endian uint16
// packing both polarizations' 8-bit values, matching the width
// internal/scatter.Scatter actually copies per sample).
func (i Info) Derive(maxBlockBytes int64) Derived {
	const bytesPerSample = 2

	pktPayloadBytes := uint32(i.PktNchan) * i.PktNtime * bytesPerSample
	obsnchan := i.Nants * i.Nstrm * i.PktNchan

	denom := int64(pktPayloadBytes) * int64(i.Nants) * int64(i.Nstrm)
	if denom == 0 {
		return Derived{}
	}

	effBlockSize := (maxBlockBytes / denom) * denom
	pktPerBlock := uint64(effBlockSize) / uint64(pktPayloadBytes)
	pktidxPerBlock := pktPerBlock / uint64(i.Nants*i.Nstrm)

	return Derived{
		ObsNChan:           obsnchan,
		PktPayloadBytes:    pktPayloadBytes,
		PktPerBlock:        pktPerBlock,
		PktidxPerBlock:     pktidxPerBlock,
		EffectiveBlockSize: int32(effBlockSize),
	}
}

// Cache holds the last-read Info/Derived pair and republishes OBSINFO
// validity plus the derived quantities on every Refresh.
type Cache struct {
	MaxBlockBytes int64

	info    Info
	derived Derived
	valid   bool
}

// NewCache returns a Cache that derives blocks of at most maxBlockBytes.
func NewCache(maxBlockBytes int64) *Cache {
	return &Cache{MaxBlockBytes: maxBlockBytes}
}

// Info returns the observation info read by the last Refresh, whether or
// not it was valid; check Valid() before relying on it.
func (c *Cache) Info() Info { return c.info }

// Derived returns the last computed derived quantities. Only meaningful
// when Valid() is true.
func (c *Cache) Derived() Derived { return c.derived }

// Valid reports whether the cache currently holds a valid observation.
func (c *Cache) Valid() bool { return c.valid }

// Refresh re-reads the six geometry fields from dict, recomputes validity
// and (if valid) the derived quantities, and republishes OBSINFO plus, when
// valid, PIPERBLK/BLOCSIZE back to dict.
func (c *Cache) Refresh(dict *status.Dict) {
	info := Info{}
	info.Fenchan, _ = status.GetUint32(dict, "FENCHAN")
	info.Nants, _ = status.GetUint32(dict, "NANTS")
	info.Nstrm, _ = status.GetUint32(dict, "NSTRM")
	info.PktNtime, _ = status.GetUint32(dict, "PKTNTIME")
	info.PktNchan, _ = status.GetUint32(dict, "PKTNCHAN")
	schan, _ := status.GetInt32(dict, "SCHAN")
	info.Schan = schan

	dict.SetAll(map[string]any{
		"FENCHAN":  info.Fenchan,
		"NANTS":    info.Nants,
		"NSTRM":    info.Nstrm,
		"PKTNTIME": info.PktNtime,
		"PKTNCHAN": info.PktNchan,
		"SCHAN":    info.Schan,
	})

	c.info = info
	c.valid = info.Valid()

	if !c.valid {
		dict.Set("OBSINFO", "INVALID")
		return
	}

	c.derived = info.Derive(c.MaxBlockBytes)
	dict.SetAll(map[string]any{
		"OBSINFO":  "VALID",
		"PIPERBLK": uint32(c.derived.PktidxPerBlock),
		"BLOCSIZE": c.derived.EffectiveBlockSize,
	})
}
