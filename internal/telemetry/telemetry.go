// Package telemetry implements the assembler's stats and rate counters
// (C6): per-block network throughput, per-second physical throughput, and
// the fill-to-free moving average over the input ring depth.
package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/wfarah/hpguppi-daq/common/go/status"
)

// Counters accumulates packet/byte counts between samples. All fields are
// updated with atomic adds from the hot loop and reset to zero by the
// sampler that consumes them.
type Counters struct {
	bits atomic.Uint64
	pkts atomic.Uint64
}

// Add records one packet of payloadBytes.
func (c *Counters) Add(payloadBytes int) {
	c.bits.Add(uint64(payloadBytes) * 8)
	c.pkts.Add(1)
}

// drain returns the accumulated bits/packets and resets both to zero.
func (c *Counters) drain() (bits, pkts uint64) {
	return c.bits.Swap(0), c.pkts.Swap(0)
}

// Rate is a bits-per-second / packets-per-second measurement.
type Rate struct {
	Gbps float64
	Pkps float64
}

// sampleRate computes a Rate from accumulated bits/pkts over elapsed,
// matching the original's "divide by elapsed nanoseconds, fixed 1e9
// numerator for pkps" arithmetic.
func sampleRate(bits, pkts uint64, elapsed time.Duration) Rate {
	ns := elapsed.Nanoseconds()
	if ns <= 0 {
		return Rate{}
	}
	return Rate{
		Gbps: float64(bits) / float64(ns),
		Pkps: 1e9 * float64(pkts) / float64(ns),
	}
}

// NetworkSampler produces NETGBPS/NETPKPS, recomputed once per finalized
// block (i.e. on Advance), as the original does at each PKTIDX block
// boundary.
type NetworkSampler struct {
	counters Counters
	last     time.Time
}

// NewNetworkSampler returns a NetworkSampler with its clock started now.
func NewNetworkSampler(now time.Time) *NetworkSampler {
	return &NetworkSampler{last: now}
}

// Record accounts for one scattered packet.
func (s *NetworkSampler) Record(payloadBytes int) { s.counters.Add(payloadBytes) }

// Sample computes the rate since the previous Sample call and publishes
// NETGBPS/NETPKPS to dict.
func (s *NetworkSampler) Sample(now time.Time, dict *status.Dict) Rate {
	elapsed := now.Sub(s.last)
	s.last = now
	bits, pkts := s.counters.drain()
	rate := sampleRate(bits, pkts, elapsed)
	dict.SetAll(map[string]any{
		"NETGBPS": float32(rate.Gbps),
		"NETPKPS": float32(rate.Pkps),
	})
	return rate
}

// PhysicalSampler produces PHYSGBPS/PHYSPKPS, recomputed once per
// wall-clock second, counting every packet received regardless of whether
// it was ultimately routed, scattered, or dropped.
type PhysicalSampler struct {
	counters Counters
	last     time.Time
}

// NewPhysicalSampler returns a PhysicalSampler with its clock started now.
func NewPhysicalSampler(now time.Time) *PhysicalSampler {
	return &PhysicalSampler{last: now}
}

// Record accounts for one received packet, scattered or not.
func (s *PhysicalSampler) Record(payloadBytes int) { s.counters.Add(payloadBytes) }

// Sample computes the rate since the previous Sample call and publishes
// PHYSGBPS/PHYSPKPS to dict. Callers invoke this once per distinct
// wall-clock second.
func (s *PhysicalSampler) Sample(now time.Time, dict *status.Dict) Rate {
	elapsed := now.Sub(s.last)
	s.last = now
	bits, pkts := s.counters.drain()
	rate := sampleRate(bits, pkts, elapsed)
	dict.SetAll(map[string]any{
		"PHYSGBPS": float32(rate.Gbps),
		"PHYSPKPS": float32(rate.Pkps),
	})
	return rate
}

// FillToFreeTracker maintains a moving sum of fill-to-free durations over
// a fixed-depth input ring, publishing NETBLKMS (the moving average in
// milliseconds) once the ring has wrapped once (i.e. on every slot index
// equal to depth-1, matching the original's "only the last slot in the
// ring publishes" cadence).
type FillToFreeTracker struct {
	depth     int
	perSlot   []time.Duration
	movingSum time.Duration
}

// NewFillToFreeTracker returns a tracker sized to depth input ring slots.
func NewFillToFreeTracker(depth int) *FillToFreeTracker {
	return &FillToFreeTracker{
		depth:   depth,
		perSlot: make([]time.Duration, depth),
	}
}

// Observe records the fill-to-free duration for the slot at idx and, if
// idx is the last slot in the ring, publishes NETBLKMS to dict.
func (f *FillToFreeTracker) Observe(idx int, elapsed time.Duration, dict *status.Dict) {
	f.movingSum += elapsed - f.perSlot[idx]
	f.perSlot[idx] = elapsed

	if idx == f.depth-1 {
		avgMs := float64(f.movingSum) / float64(f.depth) / float64(time.Millisecond)
		dict.Set("NETBLKMS", avgMs)
	}
}

// FormatRate renders r's bit rate as a human-readable bytes-per-second
// string using datasize's byte-size formatting (bits converted to bytes
// for display purposes only; the published status dict fields stay in
// Gbps per the original's units). r.Pkps is not included.
func FormatRate(r Rate) string {
	bytesPerSec := datasize.ByteSize(r.Gbps * 1e9 / 8)
	return bytesPerSec.String() + "/s"
}
