package pipeline

import (
	"context"
	"time"

	"github.com/ivlev/story2video/internal/story"
)

// PostProducer runs the stages after voiceover (transitions, subtitles, music, render).
// It is the swap point for real post-production work; the orchestrator only reports progress
// around it.
type PostProducer interface {
	Produce(ctx context.Context, stage Stage, assets *story.GeneratedAssets) error
}

// SimulatedPostProduction performs no work. It waits each stage's declared delay so the
// progress bar keeps the granularity of a longer pipeline.
type SimulatedPostProduction struct {
	// Scale multiplies Stage.Delay. Zero skips the waits.
	Scale float64
}

func (p SimulatedPostProduction) Produce(ctx context.Context, stage Stage, _ *story.GeneratedAssets) error {
	d := time.Duration(float64(stage.Delay) * p.Scale)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
