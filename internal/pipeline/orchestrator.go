package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/story2video/internal/logger"
	"github.com/ivlev/story2video/internal/story"
)

// Orchestrator turns a GenerationRequest into GeneratedAssets by walking the stage catalog.
// Stages run one after another on the calling goroutine; there is no parallelism inside a run.
type Orchestrator struct {
	Generator Generator
	Post      PostProducer
}

func NewOrchestrator(gen Generator, post PostProducer) *Orchestrator {
	if post == nil {
		post = SimulatedPostProduction{Scale: 1}
	}
	return &Orchestrator{
		Generator: gen,
		Post:      post,
	}
}

// reporter enforces that percentages never go backwards within a run.
type reporter struct {
	fn   func(Progress)
	last float64
}

func (r *reporter) emit(stage int, status Status, message string, percent float64) {
	if percent < r.last {
		percent = r.last
	}
	if percent > 100 {
		percent = 100
	}
	r.last = percent
	if r.fn != nil {
		r.fn(Progress{Stage: stage, Status: status, Message: message, Percent: percent})
	}
}

func (r *reporter) begin(s Stage) {
	r.emit(s.ID, StatusInProgress, s.Active, startPercent(s.ID))
}

func (r *reporter) complete(s Stage) {
	percent := startPercent(s.ID) + s.Weight
	if s.ID == Catalog[len(Catalog)-1].ID {
		percent = 100
	}
	r.emit(s.ID, StatusCompleted, s.Done, percent)
}

// Run executes one complete run. onProgress is called synchronously for every update and may
// be nil. On failure the returned error is a *GenerationError and no assets are returned.
func (o *Orchestrator) Run(ctx context.Context, req story.GenerationRequest, onProgress func(Progress)) (*story.GeneratedAssets, error) {
	runID := uuid.NewString()
	startTime := time.Now()
	rep := &reporter{fn: onProgress}

	logger.Info("run started",
		logger.String("run", runID),
		logger.String("length", req.Length),
		logger.String("aspect", req.AspectRatio.String()),
		logger.String("voice", req.Voice.String()),
	)

	assets, err := o.run(ctx, req, rep, runID)
	if err != nil {
		var gerr *GenerationError
		if !errors.As(err, &gerr) {
			gerr = &GenerationError{Message: err.Error(), Err: err}
		}
		logger.Error("run failed",
			logger.String("run", runID),
			logger.Int("stage", gerr.Stage),
			logger.ErrorField(err),
			logger.Duration("elapsed", time.Since(startTime)),
		)
		return nil, gerr
	}

	logger.Info("run finished",
		logger.String("run", runID),
		logger.Int("scenes", len(assets.Script)),
		logger.Duration("elapsed", time.Since(startTime)),
	)
	return assets, nil
}

func (o *Orchestrator) run(ctx context.Context, req story.GenerationRequest, rep *reporter, runID string) (*story.GeneratedAssets, error) {
	// 1. Script
	stage := Catalog[0]
	rep.begin(stage)
	script, err := o.generateScript(ctx, req)
	if err != nil {
		return nil, err
	}
	rep.complete(stage)
	logger.Debug("script ready", logger.String("run", runID), logger.Int("scenes", len(script)))

	// 2. Images, one request in flight at a time
	stage = Catalog[1]
	rep.begin(stage)
	base := startPercent(stage.ID)
	for i := range script {
		msg := fmt.Sprintf("Generating image for scene %d/%d...", i+1, len(script))
		rep.emit(stage.ID, StatusInProgress, msg, base+float64(i)/float64(len(script))*stage.Weight)

		ref, err := o.Generator.GenerateImage(ctx, script[i].VisualDescription, req.AspectRatio)
		if err == nil && ref == "" {
			err = errors.New("no image was generated")
		}
		if err != nil {
			return nil, stageError(StageImages, fmt.Sprintf("Failed to generate image for scene %d.", script[i].Number), err)
		}
		script[i].ImageURL = ref
		logger.Debug("image ready", logger.String("run", runID), logger.Int("scene", script[i].Number))
	}
	rep.complete(stage)

	// 3. Voiceover for the whole story as one track
	stage = Catalog[2]
	rep.begin(stage)
	audio, err := o.Generator.GenerateVoiceover(ctx, story.FullNarration(script), req.Voice)
	if err == nil && audio == "" {
		err = errors.New("voiceover generation returned no audio data")
	}
	if err != nil {
		return nil, stageError(StageVoiceover, "Failed to generate voiceover.", err)
	}
	rep.complete(stage)

	assets := &story.GeneratedAssets{Script: script, AudioData: audio}

	// 4-7. Post-production
	for _, stage := range Catalog[3:] {
		rep.begin(stage)
		if err := o.Post.Produce(ctx, stage, assets); err != nil {
			return nil, stageError(stage.ID, fmt.Sprintf("Failed during %s.", strings.ToLower(strings.TrimSuffix(stage.Active, "..."))), err)
		}
		rep.complete(stage)
	}
	return assets, nil
}

func (o *Orchestrator) generateScript(ctx context.Context, req story.GenerationRequest) ([]story.Scene, error) {
	scenes, err := o.Generator.GenerateScript(ctx, req)
	if err != nil {
		return nil, stageError(StageScript, "Failed to generate script. Please check your prompt and API key.", err)
	}

	script := story.CloneScript(scenes)
	story.SortScript(script)
	if err := story.ValidateScript(script, false); err != nil {
		return nil, stageError(StageScript, "Script generation failed to produce a valid list of scenes.", err)
	}
	for i := range script {
		script[i].ImageURL = ""
	}
	return script, nil
}

// stageError attaches the stage to err. A collaborator's own display message wins over fallback.
func stageError(stage int, fallback string, err error) *GenerationError {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return &GenerationError{Stage: stage, Message: gerr.Message, Err: gerr.Err}
	}
	return &GenerationError{Stage: stage, Message: fallback, Err: err}
}
