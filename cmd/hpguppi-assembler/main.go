package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/wfarah/hpguppi-daq/common/go/logging"
	"github.com/wfarah/hpguppi-daq/common/go/xcmd"
	"github.com/wfarah/hpguppi-daq/internal/assembler"
	"github.com/wfarah/hpguppi-daq/internal/flow"
	"github.com/wfarah/hpguppi-daq/internal/statussvc"
	"github.com/wfarah/hpguppi-daq/proto/statuspb"
)

var cmd Cmd

// Cmd is the command line arguments.
type Cmd struct {
	ConfigPath string
}

var rootCmd = &cobra.Command{
	Use:   "hpguppi-assembler",
	Short: "Packet-to-block assembler for F-engine voltage capture",
	Run: func(rawCmd *cobra.Command, args []string) {
		if err := run(cmd); err != nil {
			if errors.Is(err, xcmd.Interrupted{}) {
				return
			}
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd Cmd) error {
	cfg, err := assembler.LoadConfig(cmd.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	installer := flow.NewNetlinkFlowInstaller(cfg.LinkIndex)

	app, err := assembler.New(cfg, installer, log)
	if err != nil {
		return fmt.Errorf("failed to build assembler: %w", err)
	}

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		return app.Run(ctx)
	})

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
		}

		srv := grpc.NewServer()
		statuspb.RegisterStatusServiceServer(srv, statussvc.New(app.Dict(), log))

		wg.Go(func() error {
			log.Infow("status service listening", "addr", cfg.GRPCAddr)
			return srv.Serve(lis)
		})
		wg.Go(func() error {
			<-ctx.Done()
			srv.GracefulStop()
			return nil
		})
	}

	wg.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infow("caught signal", "error", err)
		return err
	})

	return wg.Wait()
}
