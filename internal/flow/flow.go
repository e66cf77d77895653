// Package flow implements the DESTIP/NSTRM subscription controller (C8):
// parsing the "A.B.C.D[+N]" status-dictionary notation, applying the
// source's tie-break rules on DESTIP change, and installing/tearing down
// the resulting per-stream flows via a pluggable FlowInstaller.
package flow

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/wfarah/hpguppi-daq/common/go/status"
	"github.com/wfarah/hpguppi-daq/common/go/xnetip"
)

// Subscription is the parsed form of a DESTIP status string: a base
// address and a count of consecutive addresses to subscribe to
// (A.B.C.D+N subscribes to N+1 addresses starting at A.B.C.D).
type Subscription struct {
	Base    netip.Addr
	Streams int
}

// IsIdle reports whether this subscription represents "0.0.0.0", the
// sentinel that tears down all flows and returns to IDLE.
func (s Subscription) IsIdle() bool {
	return s.Base == netip.IPv4Unspecified()
}

// ParseDestIP parses the "A.B.C.D" or "A.B.C.D+N" notation. N defaults to
// 0 (a single stream) when the "+N" suffix is absent.
func ParseDestIP(s string) (Subscription, error) {
	base, countStr, hasPlus := strings.Cut(s, "+")

	addr, err := netip.ParseAddr(base)
	if err != nil {
		return Subscription{}, fmt.Errorf("invalid DESTIP %q: %w", s, err)
	}
	if !addr.Is4() {
		return Subscription{}, fmt.Errorf("invalid DESTIP %q: only IPv4 is supported", s)
	}

	streams := 1
	if hasPlus {
		n, err := strconv.ParseUint(countStr, 10, 32)
		if err != nil {
			return Subscription{}, fmt.Errorf("invalid DESTIP stream count %q: %w", s, err)
		}
		streams = int(n) + 1
	}

	sub := Subscription{Base: addr, Streams: streams}
	if !sub.IsIdle() && !sub.fitsLocalBlock() {
		return Subscription{}, fmt.Errorf(
			"invalid DESTIP %q: stream range runs past the end of %s's /24", s, base)
	}
	return sub, nil
}

// fitsLocalBlock reports whether every address this subscription covers
// stays within Base's containing /24. A "+N" that wraps into the next
// subnet almost always indicates a misconfigured stream count rather than
// an intentional cross-subnet flow set, so it is rejected up front rather
// than silently installing flows on addresses the operator didn't mean to
// name.
func (s Subscription) fitsLocalBlock() bool {
	prefix := netip.PrefixFrom(s.Base, 24)
	last := xnetip.LastAddr(prefix)
	addrs := s.Addrs()
	return addrs[len(addrs)-1].Compare(last) <= 0
}

// String renders the subscription back to "A.B.C.D[+N]" notation.
func (s Subscription) String() string {
	if s.Streams <= 1 {
		return s.Base.String()
	}
	return fmt.Sprintf("%s+%d", s.Base, s.Streams-1)
}

// Addrs returns the Streams consecutive addresses this subscription
// covers, starting at Base.
func (s Subscription) Addrs() []netip.Addr {
	addrs := make([]netip.Addr, 0, s.Streams)
	cur := s.Base
	for i := 0; i < s.Streams; i++ {
		addrs = append(addrs, cur)
		cur = cur.Next()
	}
	return addrs
}

// FlowInstaller installs and removes the OS-level packet steering rule
// that routes one UDP (address, port) flow to this process's capture
// path. Implementations must be idempotent: installing an already
// installed flow, or removing an already removed one, is not an error.
type FlowInstaller interface {
	Install(ctx context.Context, addr netip.Addr, port uint16) error
	Remove(ctx context.Context, addr netip.Addr, port uint16) error
}

// Controller tracks the currently installed subscription and the maximum
// number of streams allowed (max_flows in the original), replaying the
// source's DESTIP-change tie-break rules on each refresh.
type Controller struct {
	installer FlowInstaller
	port      uint16
	maxFlows  int

	current Subscription
}

// NewController returns a Controller with no flows installed.
func NewController(installer FlowInstaller, port uint16, maxFlows int) *Controller {
	return &Controller{installer: installer, port: port, maxFlows: maxFlows}
}

// Current returns the currently installed subscription.
func (c *Controller) Current() Subscription { return c.current }

// Refresh reads DESTIP from dict and, if it differs from the currently
// installed subscription, applies the change:
//
//   - switching to "0.0.0.0" tears down all flows unconditionally.
//   - switching to a concrete address while already listening (Streams >
//     0) to a *different* address is rejected, matching the source's
//     "already listening, can't switch" guard.
//   - Streams is clamped to maxFlows.
//
// It publishes the resulting DESTIP/NSTRM back to dict.
func (c *Controller) Refresh(ctx context.Context, dict *status.Dict) error {
	raw, ok := status.GetString(dict, "DESTIP")
	if !ok {
		return nil
	}

	next, err := ParseDestIP(raw)
	if err != nil {
		return err
	}

	if next == c.current {
		return nil
	}

	if next.IsIdle() {
		if err := c.teardown(ctx); err != nil {
			return err
		}
		c.current = Subscription{Base: netip.IPv4Unspecified()}
	} else {
		if c.current.Streams > 0 && c.current != next {
			return fmt.Errorf("already listening to %s, can't switch to %s", c.current, next)
		}

		if next.Streams > c.maxFlows {
			next.Streams = c.maxFlows
		}

		if err := c.teardown(ctx); err != nil {
			return err
		}
		if err := c.install(ctx, next); err != nil {
			return err
		}
		c.current = next
	}

	dict.SetAll(map[string]any{
		"DESTIP": c.current.String(),
		"NSTRM":  uint32(c.current.Streams),
	})
	return nil
}

func (c *Controller) install(ctx context.Context, sub Subscription) error {
	var errs error
	for _, addr := range sub.Addrs() {
		if err := c.installer.Install(ctx, addr, c.port); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("install flow %s:%d: %w", addr, c.port, err))
		}
	}
	return errs
}

func (c *Controller) teardown(ctx context.Context) error {
	var errs error
	for _, addr := range c.current.Addrs() {
		if err := c.installer.Remove(ctx, addr, c.port); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("remove flow %s:%d: %w", addr, c.port, err))
		}
	}
	return errs
}
