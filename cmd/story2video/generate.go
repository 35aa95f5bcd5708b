package main

import (
	"context"
	"encoding"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/story2video/internal/export"
	"github.com/ivlev/story2video/internal/generator"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/playback"
	"github.com/ivlev/story2video/internal/session"
	"github.com/ivlev/story2video/internal/story"
	"github.com/ivlev/story2video/internal/system"
)

type generateOptions struct {
	requestFile string
	prompt      string
	language    string
	voice       string
	length      string
	aspect      string
	quality     string
	music       string
	subtitles   bool
	subStyle    string

	saveRequest string

	format   string
	name     string
	play     bool
	stats    bool
	noExport bool
}

func newGenerateCmd() *cobra.Command {
	o := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate a video from a prompt, export it and optionally play it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.prompt = args[0]
				cmd.Flags().Set("prompt", args[0])
			}
			return runGenerate(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.requestFile, "request", "r", "", "YAML request preset; flags override its fields")
	f.StringVarP(&o.prompt, "prompt", "p", "", "Story prompt")
	f.StringVar(&o.language, "language", "", "Narration language (English, Swahili)")
	f.StringVar(&o.voice, "voice", "", "Voice: male-young, female-mature, male-news, female-calm")
	f.StringVarP(&o.length, "length", "l", "", "Video length, e.g. 15s, 30 seconds, 1min, 2 minutes")
	f.StringVarP(&o.aspect, "aspect", "a", "", "Aspect ratio: 16:9, 9:16, 1:1, 4:3, 3:4")
	f.StringVar(&o.quality, "quality", "", "Quality: 720p, 1080p, 4K")
	f.StringVar(&o.music, "music", "", "Music style: Cinematic, Emotional, Upbeat, Ambient")
	f.BoolVar(&o.subtitles, "subtitles", true, "Show subtitles")
	f.StringVar(&o.subStyle, "subtitle-style", "", "Subtitle style: Minimal, Cinematic, Bold")

	f.StringVar(&o.saveRequest, "save-request", "", "Write the effective request to a YAML preset")

	f.StringVarP(&o.format, "format", "f", "", "Export format: zip, dir, minio (default: minio when configured, else zip)")
	f.StringVar(&o.name, "name", "", "Export name (default: story_<timestamp>)")
	f.BoolVar(&o.play, "play", false, "Play the video in the terminal after generation")
	f.BoolVar(&o.stats, "stats", false, "Print a run report with timings and memory use")
	f.BoolVar(&o.noExport, "no-export", false, "Skip exporting the package")
	return cmd
}

// buildRequest собирает запрос: пресет YAML (если есть), затем флаги поверх.
func buildRequest(cmd *cobra.Command, o *generateOptions) (story.GenerationRequest, error) {
	req := story.DefaultRequest()
	if o.requestFile != "" {
		loaded, err := story.LoadRequest(o.requestFile)
		if err != nil {
			return req, err
		}
		req = loaded
	}

	f := cmd.Flags()
	if f.Changed("prompt") {
		req.Prompt = o.prompt
	}
	if f.Changed("length") {
		req.Length = o.length
	}
	if f.Changed("subtitles") {
		req.Subtitles = o.subtitles
	}
	enums := []struct {
		flag  string
		value string
		dst   encoding.TextUnmarshaler
	}{
		{"language", o.language, &req.Language},
		{"voice", o.voice, &req.Voice},
		{"aspect", o.aspect, &req.AspectRatio},
		{"quality", o.quality, &req.Quality},
		{"music", o.music, &req.MusicStyle},
		{"subtitle-style", o.subStyle, &req.SubtitleStyle},
	}
	for _, e := range enums {
		if !f.Changed(e.flag) {
			continue
		}
		if err := e.dst.UnmarshalText([]byte(e.value)); err != nil {
			return req, fmt.Errorf("--%s: %w", e.flag, err)
		}
	}
	if _, cerr := req.Duration(); cerr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "[!] %v, using %s\n", cerr, story.DefaultDuration)
	}
	return req, nil
}

func runGenerate(cmd *cobra.Command, o *generateOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := setup()
	if err != nil {
		return err
	}
	req, err := buildRequest(cmd, o)
	if err != nil {
		return err
	}

	if o.saveRequest != "" {
		if err := story.WriteRequest(req, o.saveRequest); err != nil {
			return err
		}
		fmt.Fprintf(out, "[+] Request saved to %s\n", o.saveRequest)
	}

	provider, err := generator.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	var device *playback.Device
	if o.play {
		device = playback.NewDevice(playback.OpenDefault(cfg.FFplayPath))
		defer device.Close()
	}

	orch := pipeline.NewOrchestrator(provider, pipeline.SimulatedPostProduction{Scale: cfg.DelayScale})
	sess := session.New(orch, device)
	defer sess.Close()

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()
	go printProgress(out, events)

	fmt.Fprintf(out, "[*] Provider: %s | length %s | %s (%s) | voice %s\n",
		cfg.Provider, req.Length, req.AspectRatio, req.AspectRatio.Label(), req.Voice)

	startTime := time.Now()
	done, err := sess.StartGeneration(ctx, req)
	if err != nil {
		return err
	}
	<-done
	generationTime := time.Since(startTime)

	if err := sess.Err(); err != nil {
		return err
	}
	assets := sess.Assets()
	fmt.Fprintf(out, "[+++] Generated %d scenes in %v\n", len(assets.Script), generationTime.Round(time.Millisecond))

	var exportTime time.Duration
	if !o.noExport {
		exportStart := time.Now()
		sink, err := newSink(ctx, cfg, o.format)
		if err != nil {
			return err
		}
		pkg, err := export.Build(o.name, req, assets, export.Options{})
		if err != nil {
			return err
		}
		location, err := sink.Write(ctx, pkg)
		if err != nil {
			return err
		}
		exportTime = time.Since(exportStart)
		fmt.Fprintf(out, "[+++] Saved: %s\n", location)
	}

	if o.stats {
		printReport(out, assets, req, generationTime, exportTime)
	}

	if o.play {
		return playInTerminal(ctx, out, sess.Playback())
	}
	return nil
}

func printProgress(out io.Writer, events <-chan session.Event) {
	for ev := range events {
		switch {
		case ev.Kind == session.EventProgress:
			p := ev.Progress
			fmt.Fprintf(out, "[>] %3.0f%% [%d/%d] %s\n", p.Percent, p.Stage, len(pipeline.Catalog), p.Message)
		case ev.Kind == session.EventState && ev.Error != "":
			fmt.Fprintf(out, "[-] %s\n", ev.Error)
		}
	}
}

func printReport(out io.Writer, assets *story.GeneratedAssets, req story.GenerationRequest, generation, exporting time.Duration) {
	total, _ := req.Duration()
	audio := time.Duration(0)
	if samples, err := playback.DecodePCM16(assets.AudioData); err == nil {
		audio = playback.SampleDuration(len(samples))
	}
	fmt.Fprintln(out, "\n--- Run report ---")
	fmt.Fprintf(out, "Scenes:          %d\n", len(assets.Script))
	fmt.Fprintf(out, "Nominal length:  %v (%v per scene)\n", total, playback.SlotDuration(total, len(assets.Script)))
	fmt.Fprintf(out, "Narration audio: %v\n", audio.Round(time.Millisecond))
	fmt.Fprintf(out, "Generation:      %v\n", generation.Round(time.Millisecond))
	fmt.Fprintf(out, "Export:          %v\n", exporting.Round(time.Millisecond))
	fmt.Fprintf(out, "Memory:          %s\n", system.ReadMemory())
}

// playInTerminal показывает текущую сцену и субтитр на каждом шаге и ждёт окончания.
func playInTerminal(ctx context.Context, out io.Writer, engine *playback.Engine) error {
	if engine == nil {
		return fmt.Errorf("nothing to play")
	}
	select {
	case <-engine.AudioSettled():
	case <-ctx.Done():
		return nil
	}

	states, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	printScene := func() {
		scene, sub := engine.Current()
		fmt.Fprintf(out, "[scene %d/%d] %s\n", scene.Number, engine.Len(), scene.VisualDescription)
		if sub != "" {
			fmt.Fprintf(out, "    \"%s\"\n", sub)
		}
	}

	if !engine.State().AudioReady {
		fmt.Fprintln(out, "[!] Audio unavailable, playing silently")
	}
	engine.Play()
	printScene()
	last := 0
	for {
		select {
		case <-ctx.Done():
			engine.Pause()
			return nil
		case st, ok := <-states:
			if !ok {
				return nil
			}
			if st.Ended {
				fmt.Fprintln(out, "[+++] The end")
				return nil
			}
			if st.Index != last {
				last = st.Index
				printScene()
			}
		}
	}
}
