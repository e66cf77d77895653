package assembler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wfarah/hpguppi-daq/common/go/logging"
)

// Config is the top-level assembler configuration, loaded from YAML.
type Config struct {
	Logging logging.Config `yaml:"logging"`

	// InputSlots/OutputSlots size the two rings; OutputSlots must be at
	// least 2 since the assembler always holds two working blocks.
	InputSlots  int `yaml:"input_slots"`
	OutputSlots int `yaml:"output_slots"`

	// PayloadOffset is the size, in bytes, of the Ethernet/IPv4/UDP
	// envelope preceding the application header in each input slot.
	PayloadOffset int `yaml:"payload_offset"`

	// SlotDataSize is the capacity, in bytes, of one input slot's raw
	// captured frame.
	SlotDataSize int `yaml:"slot_data_size"`

	// HeaderSize is the size, in bytes, of one output block's text header
	// region.
	HeaderSize int `yaml:"header_size"`

	// MaxBlockBytes is the maximum payload size of one output block; the
	// effective block size is rounded down to a whole number of packets.
	MaxBlockBytes int64 `yaml:"max_block_bytes"`

	// DestPort is the UDP destination port F-engine packets arrive on.
	DestPort uint16 `yaml:"dest_port"`

	// MaxFlows caps how many consecutive DESTIP addresses NSTRM may
	// request flows for.
	MaxFlows int `yaml:"max_flows"`

	// LinkIndex is handed to the netlink flow installer (which stores it
	// but does not use it). App.Run also pins its OS thread to CPU
	// LinkIndex mod NumCPU, and skips pinning when LinkIndex is negative.
	LinkIndex int `yaml:"link_index"`

	// GRPCAddr is the listen address for the read-only status service.
	GRPCAddr string `yaml:"grpc_addr"`
}

// LoadConfig reads and decodes a Config from path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg := new(Config)
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
