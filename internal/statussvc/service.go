// Package statussvc implements the read-only gRPC introspection service
// (§11 supplemented feature): GetStatus returns a single snapshot of the
// status dictionary, StreamCounters sends a fresh one once per
// pollInterval (one second), independent of the assembler's own tick.
package statussvc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wfarah/hpguppi-daq/common/go/status"
	"github.com/wfarah/hpguppi-daq/proto/statuspb"
)

// Service wraps a status.Dict in the StatusService gRPC contract.
type Service struct {
	statuspb.UnimplementedStatusServiceServer

	dict *status.Dict
	log  *zap.SugaredLogger

	// pollInterval is how often StreamCounters checks the dictionary for
	// a new snapshot to send. The dictionary has no change-notification
	// mechanism of its own (by design: it is a plain mutex-guarded map),
	// so polling is the simplest correct approach for a low-rate
	// introspection feed.
	pollInterval time.Duration
}

// New returns a Service snapshotting dict.
func New(dict *status.Dict, log *zap.SugaredLogger) *Service {
	return &Service{dict: dict, log: log, pollInterval: time.Second}
}

// GetStatus returns one snapshot of the status dictionary as a
// google.protobuf.Struct.
func (s *Service) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return snapshotToStruct(s.dict)
}

// StreamCounters sends a new snapshot every pollInterval until the client
// disconnects or the server shuts down.
func (s *Service) StreamCounters(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		snap, err := snapshotToStruct(s.dict)
		if err != nil {
			s.log.Warnw("failed to marshal status snapshot", "error", err)
			continue
		}
		if err := stream.Send(snap); err != nil {
			return err
		}
	}
}

func snapshotToStruct(dict *status.Dict) (*structpb.Struct, error) {
	return structpb.NewStruct(stringify(dict.Snapshot()))
}

// stringify renders every value as a string: structpb.Struct only accepts
// the JSON-compatible value set (string/number/bool/null/list/struct), and
// the dictionary holds Go-native numeric types (uint32, int64, etc.) that
// structpb.NewStruct would otherwise reject outright.
func stringify(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch v.(type) {
		case string, bool, float64, nil:
			out[k] = v
		default:
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
