package flow

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wfarah/hpguppi-daq/common/go/status"
)

func TestParseDestIPPlainAddress(t *testing.T) {
	sub, err := ParseDestIP("10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, netip.MustParseAddr("10.0.0.1"), sub.Base)
	require.Equal(t, 1, sub.Streams)
}

func TestParseDestIPWithStreamCount(t *testing.T) {
	sub, err := ParseDestIP("10.0.0.1+3")
	require.NoError(t, err)
	require.Equal(t, 4, sub.Streams)
	require.Len(t, sub.Addrs(), 4)
	require.Equal(t, netip.MustParseAddr("10.0.0.4"), sub.Addrs()[3])
}

func TestParseDestIPRejectsGarbage(t *testing.T) {
	_, err := ParseDestIP("not-an-ip")
	require.Error(t, err)
}

func TestParseDestIPIdleSentinel(t *testing.T) {
	sub, err := ParseDestIP("0.0.0.0")
	require.NoError(t, err)
	require.True(t, sub.IsIdle())
}

func TestControllerRefreshInstallsFlows(t *testing.T) {
	installer := NewFakeFlowInstaller()
	c := NewController(installer, 4015, 8)

	dict := status.New()
	dict.Set("DESTIP", "10.0.0.1+1")

	require.NoError(t, c.Refresh(context.Background(), dict))
	require.Len(t, installer.Installed, 2)

	nstrm, ok := status.GetUint32(dict, "NSTRM")
	require.True(t, ok)
	require.Equal(t, uint32(2), nstrm)
}

func TestControllerRefreshRejectsSwitchWhileListening(t *testing.T) {
	installer := NewFakeFlowInstaller()
	c := NewController(installer, 4015, 8)
	dict := status.New()

	dict.Set("DESTIP", "10.0.0.1")
	require.NoError(t, c.Refresh(context.Background(), dict))

	dict.Set("DESTIP", "10.0.0.2")
	err := c.Refresh(context.Background(), dict)
	require.Error(t, err)
}

func TestControllerRefreshRejectsStreamCountChangeWhileListening(t *testing.T) {
	installer := NewFakeFlowInstaller()
	c := NewController(installer, 4015, 8)
	dict := status.New()

	dict.Set("DESTIP", "10.0.0.1")
	require.NoError(t, c.Refresh(context.Background(), dict))

	dict.Set("DESTIP", "10.0.0.1+3")
	err := c.Refresh(context.Background(), dict)
	require.Error(t, err)
	require.Len(t, installer.Installed, 1)
}

func TestControllerRefreshIdleTearsDownAllFlows(t *testing.T) {
	installer := NewFakeFlowInstaller()
	c := NewController(installer, 4015, 8)
	dict := status.New()

	dict.Set("DESTIP", "10.0.0.1+2")
	require.NoError(t, c.Refresh(context.Background(), dict))
	require.Len(t, installer.Installed, 3)

	dict.Set("DESTIP", "0.0.0.0")
	require.NoError(t, c.Refresh(context.Background(), dict))
	require.Empty(t, installer.Installed)

	nstrm, _ := status.GetUint32(dict, "NSTRM")
	require.Equal(t, uint32(0), nstrm)
}

func TestControllerRefreshClampsToMaxFlows(t *testing.T) {
	installer := NewFakeFlowInstaller()
	c := NewController(installer, 4015, 2)
	dict := status.New()

	dict.Set("DESTIP", "10.0.0.1+5")
	require.NoError(t, c.Refresh(context.Background(), dict))
	require.Len(t, installer.Installed, 2)
}

func TestControllerRefreshNoOpWhenUnchanged(t *testing.T) {
	installer := NewFakeFlowInstaller()
	c := NewController(installer, 4015, 8)
	dict := status.New()

	dict.Set("DESTIP", "10.0.0.1")
	require.NoError(t, c.Refresh(context.Background(), dict))
	require.NoError(t, c.Refresh(context.Background(), dict))
	require.Len(t, installer.Installed, 1)
}
