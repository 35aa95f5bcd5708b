package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/story2video/internal/logger"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/playback"
	"github.com/ivlev/story2video/internal/story"
)

// Runner produces assets for a request. *pipeline.Orchestrator is the production Runner.
type Runner interface {
	Run(ctx context.Context, req story.GenerationRequest, onProgress func(pipeline.Progress)) (*story.GeneratedAssets, error)
}

// Session sequences configuration, generation, preview and editing for one user. It is the
// only owner of the current assets: they are replaced wholesale when a run succeeds or an
// edit is saved, and handed out only as copies.
type Session struct {
	id         string
	runner     Runner
	device     *playback.Device
	engineOpts []playback.Option

	mu       sync.Mutex
	state    State
	req      story.GenerationRequest
	assets   *story.GeneratedAssets
	err      *pipeline.GenerationError
	progress pipeline.Progress
	working  []story.Scene
	engine   *playback.Engine
	closed   bool

	subs    map[int]chan Event
	nextSub int
}

// New creates a session in Configuring. device may be nil for silent previews.
func New(runner Runner, device *playback.Device, engineOpts ...playback.Option) *Session {
	return &Session{
		id:         uuid.NewString(),
		runner:     runner,
		device:     device,
		engineOpts: engineOpts,
		state:      Configuring,
		req:        story.DefaultRequest(),
		subs:       make(map[int]chan Event),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err is the error of the last failed run, nil unless Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

// Assets returns a copy of the committed assets, nil when there are none.
func (s *Session) Assets() *story.GeneratedAssets {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets.Clone()
}

// Request is the request of the current or last run, or the defaults before any run.
func (s *Session) Request() story.GenerationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req
}

func (s *Session) Progress() pipeline.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Playback is the engine of the current preview, nil outside Previewing.
func (s *Session) Playback() *playback.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// StartGeneration begins a run for req. The returned channel is closed once the run has
// settled into Previewing or Failed.
func (s *Session) StartGeneration(ctx context.Context, req story.GenerationRequest) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Configuring {
		return nil, &StateError{Command: "start generation", State: s.state}
	}
	return s.startLocked(ctx, req), nil
}

// StartContinuation discards the current assets and generates the next episode of the story.
func (s *Session) StartContinuation(ctx context.Context) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Previewing || s.assets == nil {
		return nil, &StateError{Command: "start continuation", State: s.state}
	}
	next, err := story.Continue(s.req, s.assets)
	if err != nil {
		return nil, &StateError{Command: "start continuation", State: s.state}
	}
	s.closeEngineLocked()
	s.assets = nil
	return s.startLocked(ctx, next), nil
}

func (s *Session) startLocked(ctx context.Context, req story.GenerationRequest) <-chan struct{} {
	if _, cerr := req.Duration(); cerr != nil {
		logger.Warn("using default length", logger.String("session", s.id), logger.ErrorField(cerr))
	}
	s.req = req
	s.err = nil
	s.progress = pipeline.Progress{}
	s.setStateLocked(Generating)

	done := make(chan struct{})
	go func() {
		defer close(done)
		assets, err := s.runner.Run(ctx, req, s.onProgress)
		s.settle(assets, err)
	}()
	return done
}

func (s *Session) onProgress(p pipeline.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
	s.publishLocked(Event{Kind: EventProgress, Progress: &p})
}

func (s *Session) settle(assets *story.GeneratedAssets, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		var gerr *pipeline.GenerationError
		if !errors.As(err, &gerr) {
			gerr = &pipeline.GenerationError{Message: err.Error(), Err: err}
		}
		s.err = gerr
		s.assets = nil
		s.setStateLocked(Failed)
		return
	}
	s.assets = assets.Clone()
	s.enterPreviewLocked()
}

// EditScenes enters Editing and returns a detached working copy of the script.
func (s *Session) EditScenes() ([]story.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Previewing {
		return nil, &StateError{Command: "edit scenes", State: s.state}
	}
	s.closeEngineLocked()
	s.working = story.CloneScript(s.assets.Script)
	s.setStateLocked(Editing)
	return story.CloneScript(s.working), nil
}

// SaveEdits commits edited narration and descriptions. Positions and images are kept.
// An invalid edit leaves the session in Editing.
func (s *Session) SaveEdits(scenes []story.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Editing {
		return &StateError{Command: "save edits", State: s.state}
	}
	script, err := story.ApplyEdits(s.assets.Script, scenes)
	if err != nil {
		return err
	}
	s.assets = &story.GeneratedAssets{Script: script, AudioData: s.assets.AudioData}
	s.working = nil
	s.enterPreviewLocked()
	return nil
}

// CancelEdits drops the working copy. The committed script is untouched.
func (s *Session) CancelEdits() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Editing {
		return &StateError{Command: "cancel edits", State: s.state}
	}
	s.working = nil
	s.enterPreviewLocked()
	return nil
}

// Reset returns to Configuring from Previewing or Failed. The last request is kept so the
// form can be prefilled.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Previewing && s.state != Failed {
		return &StateError{Command: "reset", State: s.state}
	}
	s.closeEngineLocked()
	s.assets = nil
	s.err = nil
	s.progress = pipeline.Progress{}
	s.setStateLocked(Configuring)
	return nil
}

// Close releases the preview engine and ends every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeEngineLocked()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// enterPreviewLocked builds the preview engine. A closed session previews without one.
func (s *Session) enterPreviewLocked() {
	if s.closed {
		s.setStateLocked(Previewing)
		return
	}
	total, _ := s.req.Duration()
	opts := append([]playback.Option{playback.WithSubtitles(s.req.Subtitles)}, s.engineOpts...)
	engine := playback.NewEngine(s.assets, total, s.device, opts...)
	s.engine = engine
	s.setStateLocked(Previewing)

	states, _ := engine.Subscribe()
	go s.forwardPlayback(states)
}

func (s *Session) forwardPlayback(states <-chan playback.State) {
	for st := range states {
		s.mu.Lock()
		s.publishLocked(Event{Kind: EventPlayback, Playback: &st})
		s.mu.Unlock()
	}
}

func (s *Session) closeEngineLocked() {
	if s.engine != nil {
		s.engine.Close()
		s.engine = nil
	}
}

// Working returns the edit working copy while Editing.
func (s *Session) Working() []story.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return story.CloneScript(s.working)
}

// SlotDuration is how long each scene stays on screen in the current preview.
func (s *Session) SlotDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return 0
	}
	return s.engine.Slot()
}
