package assembler

import (
	"context"
	"encoding/binary"
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfarah/hpguppi-daq/common/go/status"
	"github.com/wfarah/hpguppi-daq/internal/flow"
	"github.com/wfarah/hpguppi-daq/internal/pktparse"
)

func buildTestEnvelope(t *testing.T) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(239, 0, 0, 1),
	}
	udp := &layers.UDP{SrcPort: 10000, DstPort: 4015}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp))
	return append([]byte{}, buf.Bytes()...)
}

func buildTestSlot(t *testing.T, envelope []byte, fengID, fengChan uint16, pktidx uint64, payload []byte) []byte {
	t.Helper()

	hdr := make([]byte, pktparse.AppHeaderSize)
	binary.BigEndian.PutUint16(hdr[0:2], fengID)
	binary.BigEndian.PutUint16(hdr[2:4], fengChan)
	binary.BigEndian.PutUint64(hdr[4:12], pktidx)

	slot := append([]byte{}, envelope...)
	slot = append(slot, hdr...)
	slot = append(slot, payload...)
	return slot
}

// TestEndToEndAssemblesBlock drives App.processSlot across a full block (C1
// through C4 wired together: parse, obs-info gate, route, scatter, record)
// plus the boundary packet that triggers Advance/Finalize, then inspects the
// finalized output block's header and scattered payload.
func TestEndToEndAssemblesBlock(t *testing.T) {
	// nants=2, nstrm=1, pkt_nchan=64, pkt_ntime=16 => pkt_payload_bytes=2048,
	// and a 16384-byte block budget derives pktidx_per_block=4,
	// pkts_per_block=8 (S1's geometry).
	envelope := buildTestEnvelope(t)

	cfg := &Config{
		InputSlots:    4,
		OutputSlots:   4,
		PayloadOffset: len(envelope),
		SlotDataSize:  4096,
		HeaderSize:    256,
		MaxBlockBytes: 16384,
		DestPort:      4015,
		MaxFlows:      4,
		LinkIndex:     -1,
	}

	app, err := New(cfg, flow.NewFakeFlowInstaller(), zap.NewNop().Sugar())
	require.NoError(t, err)

	app.Dict().SetAll(map[string]any{
		"FENCHAN":  uint32(64),
		"NANTS":    uint32(2),
		"NSTRM":    uint32(1),
		"PKTNTIME": uint32(16),
		"PKTNCHAN": uint32(64),
		"SCHAN":    int32(0),
	})

	ctx := context.Background()
	require.NoError(t, app.waitForObsInfo(ctx))
	require.Equal(t, uint64(4), app.pktidxPerBlock)
	require.Equal(t, uint64(8), app.pktsPerBlock)
	require.NoError(t, app.asm.Init(ctx, app.pktsPerBlock, app.pktidxPerBlock))

	payload := make([]byte, 64*16*2)
	for i := range payload {
		payload[i] = byte(i)
	}

	feed := func(fengID uint16, pktidx uint64) {
		idx := 0
		slot := buildTestSlot(t, envelope, fengID, 0, pktidx, payload)
		copy(app.Input().Slot(idx).Data, slot)
		app.processSlot(ctx, idx)
	}

	for pktidx := uint64(0); pktidx < 4; pktidx++ {
		for fengID := uint16(0); fengID < 2; fengID++ {
			feed(fengID, pktidx)
		}
	}

	// First packet processed (fengid=0, pktidx=0) lands at sample offset 0
	// of working[0]'s data: confirms scatter actually ran, not just the
	// packet counter.
	require.Equal(t, payload[0:2], app.output.Slot(0).Data[0:2])

	require.False(t, app.output.IsFilled(0))
	feed(0, 8) // first packet of block 2, one past working[1]: triggers RouteAdvance

	require.True(t, app.output.IsFilled(0))
	header := string(app.output.Slot(0).Header)
	require.Contains(t, header, "PKTIDX=0")
	require.Contains(t, header, "NPKT=8")
	require.Contains(t, header, "NDROP=0")

	nstrm, ok := status.GetUint32(app.Dict(), "NSTRM")
	require.True(t, ok)
	require.Equal(t, uint32(1), nstrm)
}
