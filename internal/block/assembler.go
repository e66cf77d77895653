package block

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/wfarah/hpguppi-daq/common/go/ring"
	"github.com/wfarah/hpguppi-daq/common/go/status"
	"github.com/wfarah/hpguppi-daq/internal/state"
)

// RouteDecision classifies an incoming packet's block number relative to
// the current working window.
type RouteDecision int

const (
	// RouteWorking0 and RouteWorking1 mean the packet belongs in
	// working[0] or working[1] respectively.
	RouteWorking0 RouteDecision = iota
	RouteWorking1
	// RouteLate means the packet is one block behind working[0] and must
	// be dropped, incrementing NLATE.
	RouteLate
	// RouteAdvance means the packet starts the block immediately after
	// working[1]; the window must be advanced before scattering.
	RouteAdvance
	// RouteReset means the packet is far outside the window; the window
	// must be reset before the (now stale) packet is re-routed.
	RouteReset
)

// Assembler owns the two working blocks and the output ring they are
// acquired from.
type Assembler struct {
	Output *ring.Ring
	State  *state.Controller
	Log    *zap.SugaredLogger

	working    [2]*Block
	nextIdxOut int
}

// NewAssembler returns an Assembler bound to the given output ring.
func NewAssembler(output *ring.Ring, st *state.Controller, log *zap.SugaredLogger) *Assembler {
	return &Assembler{
		Output: output,
		State:  st,
		Log:    log,
		working: [2]*Block{
			{}, {},
		},
	}
}

// Working returns the current two working blocks, W[0] and W[1].
func (a *Assembler) Working() (w0, w1 *Block) {
	return a.working[0], a.working[1]
}

// Route classifies pktBlockNum against the current window per §4.3.
func (a *Assembler) Route(pktBlockNum int64) RouteDecision {
	w0, w1 := a.working[0], a.working[1]
	switch {
	case pktBlockNum == w0.BlockNum:
		return RouteWorking0
	case pktBlockNum == w1.BlockNum:
		return RouteWorking1
	case pktBlockNum == w1.BlockNum+1:
		return RouteAdvance
	case pktBlockNum == w0.BlockNum-1:
		return RouteLate
	default:
		return RouteReset
	}
}

// Init reserves both working blocks for the first time, at absolute block
// numbers 0 and 1.
func (a *Assembler) Init(ctx context.Context, pktsPerBlock, pktidxPerBlock uint64) error {
	return a.reinit(ctx, -1, pktsPerBlock, pktidxPerBlock)
}

// Reset reinitializes both working blocks at pktBlockNum+1 and
// pktBlockNum+2.
//
// Per the explicit Open Question preserved from the original source: the
// packet that triggered this reset is NOT retroactively accepted into the
// new window. The caller re-routes it after Reset returns, and it will
// land on RouteLate against the new W[0] (pktBlockNum+1), and therefore be
// dropped. This forces a clean boundary at the next full block rather than
// scattering into a partially-initialized one.
func (a *Assembler) Reset(ctx context.Context, pktBlockNum int64, pktsPerBlock, pktidxPerBlock uint64) error {
	a.Log.Warnw("block window discontinuity, resetting", "triggering_block_num", pktBlockNum)
	return a.reinit(ctx, pktBlockNum, pktsPerBlock, pktidxPerBlock)
}

func (a *Assembler) reinit(ctx context.Context, baseBlockNum int64, pktsPerBlock, pktidxPerBlock uint64) error {
	for i := 0; i < 2; i++ {
		blk, err := a.acquireFree(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to acquire free block %d during reinit: %w", i, err)
		}
		blk.Reset(baseBlockNum+int64(i)+1, pktsPerBlock, pktidxPerBlock)
		a.working[i] = blk
	}
	return nil
}

// Advance finalizes working[0], shifts working[1] into working[0],
// acquires a fresh working[1], and runs the state controller's
// check-start-stop on the new working[0]'s boundary.
func (a *Assembler) Advance(ctx context.Context, dict *status.Dict) error {
	a.Finalize(a.working[0], dict)

	nextBlockNum := a.working[1].BlockNum + 1
	pktsPerBlock := a.working[1].PktsPerBlock
	pktidxPerBlock := a.working[1].PktidxPerBlock

	a.working[0] = a.working[1]

	fresh, err := a.acquireFree(ctx, dict)
	if err != nil {
		return fmt.Errorf("failed to acquire free block on advance: %w", err)
	}
	fresh.Reset(nextBlockNum, pktsPerBlock, pktidxPerBlock)
	a.working[1] = fresh

	a.State.CheckStartStop(dict, uint64(a.working[0].BlockNum)*a.working[0].PktidxPerBlock)
	return nil
}

// Finalize stamps the block's header (PKTIDX, NPKT, NDROP, DROPSTAT) and
// hands it to the output ring as filled. Calling Finalize twice on the
// same block without an intervening Reset is idempotent: it only reads
// stat fields, never mutates them beyond the saturating NDROP computation,
// which is itself stable once Npacket stops changing.
func (a *Assembler) Finalize(b *Block, dict *status.Dict) {
	npkt, ndrop := b.FinalizeStats()

	if b.Header != nil {
		putHeaderUint64(b.Header, "PKTIDX", b.PKTIDX())
		putHeaderUint32(b.Header, "NPKT", npkt)
		putHeaderUint32(b.Header, "NDROP", ndrop)
		putHeaderString(b.Header, "DROPSTAT", fmt.Sprintf("%d/%d", ndrop, b.PktsPerBlock))
	}

	if dict != nil {
		dict.Set("BLOCSIZE", int32(len(b.Data)))
		dict.Set("PIPERBLK", uint32(b.PktidxPerBlock))
	}

	if a.Output != nil {
		a.Output.MarkFilled(b.BlockIdx)
	}

	if a.Log != nil {
		a.Log.Debugw("finalized block",
			"block_num", b.BlockNum, "pktidx", b.PKTIDX(),
			"npkt", npkt, "ndrop", ndrop, "antennas_seen", b.AntennaCount(),
		)
	}
}

// acquireFree waits for a free output ring slot, republishing NETSTAT
// (waitfree -> outblocked) with an exponential backoff cadence while it
// waits, then snapshots dict into the new block's header region.
func (a *Assembler) acquireFree(ctx context.Context, dict *status.Dict) (*Block, error) {
	idx := a.nextIdxOut
	a.nextIdxOut = (a.nextIdxOut + 1) % a.Output.Len()

	if dict != nil {
		dict.Set("NETSTAT", "waitfree")
	}

	b := &Block{}

	waitBackoff := backoff.ExponentialBackOff{
		InitialInterval:     backoff.DefaultInitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         time.Second,
	}
	waitBackoff.Reset()

	attempts := 0
	for {
		ok, err := a.Output.WaitFree(ctx, idx, 50*time.Millisecond)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		attempts++
		if attempts == 20 && dict != nil {
			dict.Set("NETSTAT", "outblocked")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitBackoff.NextBackOff()):
		}
	}

	slot := a.Output.Slot(idx)
	b.BindSlot(idx, slot.Header, slot.Data)

	if dict != nil && slot.Header != nil {
		for k, v := range dict.Snapshot() {
			putHeaderAny(slot.Header, k, v)
		}
	}

	return b, nil
}

// The header region is modeled as a flat text key/value area, matching
// hashpipe's HASHPIPE_STATUS_TOTAL_SIZE card layout closely enough for
// this repo's purposes: each call writes one "KEY=value\n" line, removing
// any earlier line for the same key and appending the new one. A byte
// budget overrun is silently truncated, mirroring hashpipe's fixed-size
// status buffer behavior.
func putHeaderString(header []byte, key, value string) {
	writeHeaderLine(header, key, value)
}

func putHeaderUint64(header []byte, key string, v uint64) {
	writeHeaderLine(header, key, fmt.Sprintf("%d", v))
}

func putHeaderUint32(header []byte, key string, v uint32) {
	writeHeaderLine(header, key, fmt.Sprintf("%d", v))
}

func putHeaderAny(header []byte, key string, v any) {
	writeHeaderLine(header, key, fmt.Sprintf("%v", v))
}

func writeHeaderLine(header []byte, key, value string) {
	used := headerCursor(header)
	prefix := []byte(key + "=")
	kept := make([]byte, 0, used+len(prefix)+len(value)+1)
	for _, line := range bytes.SplitAfter(header[:used], []byte("\n")) {
		if len(line) > 0 && !bytes.HasPrefix(line, prefix) {
			kept = append(kept, line...)
		}
	}
	kept = append(kept, key+"="+value+"\n"...)
	n := copy(header, kept)
	if n < used {
		clear(header[n:used])
	}
}

// headerCursor finds the first zero byte in header, treating it as the
// current write cursor. This keeps the header format append-only and
// simple; real hashpipe status buffers use fixed 80-byte cards instead,
// which is an internal representation detail this repo doesn't need to
// match since downstream consumption of the header is out of scope.
func headerCursor(header []byte) int {
	for i, b := range header {
		if b == 0 {
			return i
		}
	}
	return len(header)
}
