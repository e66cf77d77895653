package flow

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"github.com/vishvananda/netlink"
)

// ruleTableBase is the first policy-routing table used for installed
// flows; each flow gets its own table (ruleTableBase + index into the
// stream's address octet) so flows can be torn down independently
// without disturbing others, mirroring the per-dest_idx flow handles the
// original keeps in hpguppi_ibvpkt_flow.
const ruleTableBase = 100

// NetlinkFlowInstaller manages one policy-routing rule per UDP destination
// address: packets matching (dst addr, dst port) are sent to a dedicated
// routing table. It only adds and deletes the rule; it does not add any
// route to that table, and LinkIndex is stored but not used by Install or
// Remove. The rule stands in for the source's ibverbs flow-steering call
// (hpguppi_ibvpkt_flow).
type NetlinkFlowInstaller struct {
	LinkIndex int
}

// NewNetlinkFlowInstaller returns an installer that records linkIndex in
// its LinkIndex field.
func NewNetlinkFlowInstaller(linkIndex int) *NetlinkFlowInstaller {
	return &NetlinkFlowInstaller{LinkIndex: linkIndex}
}

func (n *NetlinkFlowInstaller) rule(addr netip.Addr, port uint16) *netlink.Rule {
	r := netlink.NewRule()
	ip4 := addr.As4()
	r.Dst = &net.IPNet{IP: net.IP(ip4[:]), Mask: net.CIDRMask(32, 32)}
	r.Dport = netlink.NewRulePortRange(port, port)
	r.Table = ruleTableBase + int(ip4[3])
	return r
}

// Install adds the policy-routing rule for addr:port. Idempotent: if the
// rule already exists, netlink.RuleAdd returns EEXIST, which is treated
// as success.
func (n *NetlinkFlowInstaller) Install(ctx context.Context, addr netip.Addr, port uint16) error {
	if err := netlink.RuleAdd(n.rule(addr, port)); err != nil && !errors.Is(err, syscall.EEXIST) {
		return fmt.Errorf("netlink rule add for %s:%d: %w", addr, port, err)
	}
	return nil
}

// Remove deletes the policy-routing rule for addr:port. Idempotent: a
// missing rule is not an error.
func (n *NetlinkFlowInstaller) Remove(ctx context.Context, addr netip.Addr, port uint16) error {
	if err := netlink.RuleDel(n.rule(addr, port)); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("netlink rule del for %s:%d: %w", addr, port, err)
	}
	return nil
}
