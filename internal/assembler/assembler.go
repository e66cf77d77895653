// Package assembler implements the orchestration hot loop (C1-C8 wired
// together): waits on input-ring slots, parses and validates packets,
// routes/scatters/advances the working block window, samples telemetry,
// and runs the 1Hz tick (obs-info and flow refresh, physical-rate sample,
// DAQPULSE). The state controller runs only on block advance.
package assembler

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wfarah/hpguppi-daq/common/go/ring"
	"github.com/wfarah/hpguppi-daq/common/go/status"
	"github.com/wfarah/hpguppi-daq/internal/block"
	"github.com/wfarah/hpguppi-daq/internal/flow"
	"github.com/wfarah/hpguppi-daq/internal/obsinfo"
	"github.com/wfarah/hpguppi-daq/internal/pktparse"
	"github.com/wfarah/hpguppi-daq/internal/scatter"
	"github.com/wfarah/hpguppi-daq/internal/state"
	"github.com/wfarah/hpguppi-daq/internal/telemetry"
)

// App owns every component of the pipeline and drives the hot loop.
type App struct {
	cfg *Config
	log *zap.SugaredLogger

	dict *status.Dict

	input  *ring.Ring
	output *ring.Ring

	parser *pktparse.Parser
	obs    *obsinfo.Cache
	state  *state.Controller
	flow   *flow.Controller
	asm    *block.Assembler

	netSampler  *telemetry.NetworkSampler
	physSampler *telemetry.PhysicalSampler
	fillToFree  *telemetry.FillToFreeTracker

	geometry       scatter.Geometry
	pktsPerBlock   uint64
	pktidxPerBlock uint64

	nlate uint64
}

// New builds an App from cfg. It does not start the hot loop; call Run.
func New(cfg *Config, installer flow.FlowInstaller, log *zap.SugaredLogger) (*App, error) {
	parser, err := pktparse.NewParser(cfg.PayloadOffset)
	if err != nil {
		return nil, fmt.Errorf("failed to build packet parser: %w", err)
	}

	dict := status.New()
	input := ring.New(cfg.InputSlots, 0, cfg.SlotDataSize)
	output := ring.New(cfg.OutputSlots, cfg.HeaderSize, int(cfg.MaxBlockBytes))

	stateCtl := state.NewController()
	asm := block.NewAssembler(output, stateCtl, log)

	now := time.Now()
	return &App{
		cfg:         cfg,
		log:         log,
		dict:        dict,
		input:       input,
		output:      output,
		parser:      parser,
		obs:         obsinfo.NewCache(cfg.MaxBlockBytes),
		state:       stateCtl,
		flow:        flow.NewController(installer, cfg.DestPort, cfg.MaxFlows),
		asm:         asm,
		netSampler:  telemetry.NewNetworkSampler(now),
		physSampler: telemetry.NewPhysicalSampler(now),
		fillToFree:  telemetry.NewFillToFreeTracker(cfg.InputSlots),
	}, nil
}

// Dict returns the process-wide status dictionary, exposed for
// internal/statussvc to snapshot.
func (a *App) Dict() *status.Dict { return a.dict }

// Input returns the input ring, so an external capture component (out of
// scope for this repo: it is the producer side of the ring) can be wired
// up in tests or a future ingestion binary.
func (a *App) Input() *ring.Ring { return a.input }

// Run pins the calling OS thread for low-jitter scheduling (best effort;
// failures are logged, not fatal, since this commonly requires privileges
// this process may not have) and drives the hot loop until ctx is
// canceled.
func (a *App) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	a.pinThisThread()

	if err := a.waitForObsInfo(ctx); err != nil {
		return err
	}
	if err := a.asm.Init(ctx, a.pktsPerBlock, a.pktidxPerBlock); err != nil {
		return fmt.Errorf("failed to initialize block window: %w", err)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	slotIdx := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.tick()
		default:
		}

		filled, err := a.input.WaitFilled(ctx, slotIdx, 50*time.Millisecond)
		if err != nil {
			return fmt.Errorf("input ring wait: %w", err)
		}
		if !filled {
			continue
		}

		start := time.Now()
		a.processSlot(ctx, slotIdx)
		a.input.MarkFree(slotIdx)
		a.fillToFree.Observe(slotIdx, time.Since(start), a.dict)

		slotIdx = (slotIdx + 1) % a.input.Len()
	}
}

func (a *App) pinThisThread() {
	if a.cfg.LinkIndex < 0 {
		return
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(a.cfg.LinkIndex % runtime.NumCPU())
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		a.log.Warnw("failed to set CPU affinity, continuing unpinned", "error", err)
		return
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), -20); err != nil {
		a.log.Warnw("failed to raise scheduling priority", "error", err)
	}
}

func (a *App) waitForObsInfo(ctx context.Context) error {
	a.obs.Refresh(a.dict)
	for !a.obs.Valid() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
		a.obs.Refresh(a.dict)
	}
	derived := a.obs.Derived()
	a.pktsPerBlock = derived.PktPerBlock
	a.pktidxPerBlock = derived.PktidxPerBlock
	a.geometry = scatter.NewGeometry(a.obs.Info(), a.pktidxPerBlock)
	return nil
}

func (a *App) tick() {
	a.obs.Refresh(a.dict)
	if err := a.flow.Refresh(context.Background(), a.dict); err != nil {
		a.log.Warnw("flow refresh failed", "error", err)
	}
	a.physSampler.Sample(time.Now(), a.dict)
	a.dict.Set("DAQPULSE", time.Now().UTC().Format(time.UnixDate))
}

func (a *App) processSlot(ctx context.Context, slotIdx int) {
	slot := a.input.Slot(slotIdx)
	desc, payload, err := a.parser.Parse(slot.Data)
	if err != nil {
		a.log.Debugw("dropping unparseable packet", "error", err)
		return
	}

	a.physSampler.Record(len(payload))

	if !a.obs.Valid() || a.pktidxPerBlock == 0 {
		return
	}
	if desc.FengID >= a.obs.Info().Nants {
		return
	}

	pktBlockNum := int64(desc.Pktidx / a.pktidxPerBlock)

	switch a.asm.Route(pktBlockNum) {
	case block.RouteLate:
		a.nlate++
		a.dict.Set("NLATE", a.nlate)
		return

	case block.RouteReset:
		if err := a.asm.Reset(ctx, pktBlockNum, a.pktsPerBlock, a.pktidxPerBlock); err != nil {
			a.log.Errorw("failed to reset block window", "error", err)
			return
		}
		if a.asm.Route(pktBlockNum) == block.RouteLate {
			a.nlate++
			a.dict.Set("NLATE", a.nlate)
		}
		return

	case block.RouteAdvance:
		if err := a.asm.Advance(ctx, a.dict); err != nil {
			a.log.Errorw("failed to advance block window", "error", err)
			return
		}
		a.netSampler.Sample(time.Now(), a.dict)
	}

	w0, w1 := a.asm.Working()
	target := w0
	if pktBlockNum == w1.BlockNum {
		target = w1
	}

	if err := scatter.Scatter(a.geometry, desc, payload, target.Data); err != nil {
		a.log.Warnw("scatter failed", "error", err)
		return
	}
	target.RecordPacket(desc.FengID)
	a.netSampler.Record(len(payload))
}
