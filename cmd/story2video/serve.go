package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/story2video/internal/generator"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/playback"
	"github.com/ivlev/story2video/internal/server"
	"github.com/ivlev/story2video/internal/session"
	"github.com/ivlev/story2video/internal/system"
)

func newServeCmd() *cobra.Command {
	var addr, format string
	var audio bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session over HTTP with a websocket event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTPAddr = addr
			}

			system.InitResourceLimits()

			provider, err := generator.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer provider.Close()

			sink, err := newSink(ctx, cfg, format)
			if err != nil {
				return err
			}

			var device *playback.Device
			if audio {
				device = playback.NewDevice(playback.OpenDefault(cfg.FFplayPath))
				defer device.Close()
			}

			orch := pipeline.NewOrchestrator(provider, pipeline.SimulatedPostProduction{Scale: cfg.DelayScale})
			sess := session.New(orch, device)
			defer sess.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "[*] Listening on %s (provider %s)\n", cfg.HTTPAddr, cfg.Provider)
			return server.New(ctx, sess, sink).ListenAndServe(ctx, cfg.HTTPAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address (overrides HTTP_ADDR)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Export format: zip, dir, minio")
	cmd.Flags().BoolVar(&audio, "audio", false, "Play preview audio on this host through ffplay")
	return cmd
}
