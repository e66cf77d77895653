package flow

import (
	"context"
	"net/netip"
	"strconv"
)

// FakeFlowInstaller records Install/Remove calls in memory, for tests that
// exercise Controller.Refresh without touching the host's routing tables.
type FakeFlowInstaller struct {
	Installed map[string]bool
}

// NewFakeFlowInstaller returns an empty FakeFlowInstaller.
func NewFakeFlowInstaller() *FakeFlowInstaller {
	return &FakeFlowInstaller{Installed: map[string]bool{}}
}

func key(addr netip.Addr, port uint16) string {
	return addr.String() + "/" + strconv.Itoa(int(port))
}

// Install records addr:port as installed.
func (f *FakeFlowInstaller) Install(ctx context.Context, addr netip.Addr, port uint16) error {
	f.Installed[key(addr, port)] = true
	return nil
}

// Remove records addr:port as removed.
func (f *FakeFlowInstaller) Remove(ctx context.Context, addr netip.Addr, port uint16) error {
	delete(f.Installed, key(addr, port))
	return nil
}
