package playback

import (
	"sync"
	"time"

	"github.com/ivlev/story2video/internal/logger"
	"github.com/ivlev/story2video/internal/story"
)

// Engine advances a slideshow on a fixed per-scene slot and plays the narration track
// alongside it. Audio and slideshow are started together but not coupled: the slideshow runs
// whether or not audio is ready.
type Engine struct {
	script    []story.Scene
	subtitles bool
	device    *Device
	newTicker TickerFunc

	mu      sync.Mutex
	state   State
	total   time.Duration
	slot    time.Duration
	samples []float32
	voice   Voice
	closed  bool

	// run identifies the active timer; ticks from an older run are dropped.
	run      uint64
	stopTick chan struct{}

	subs    map[int]chan State
	nextSub int

	settled chan struct{}
}

type Option func(*Engine)

// WithTicker replaces the wall clock timer.
func WithTicker(f TickerFunc) Option {
	return func(e *Engine) { e.newTicker = f }
}

// WithSubtitles makes Current return the narration of the scene on screen.
func WithSubtitles(enabled bool) Option {
	return func(e *Engine) { e.subtitles = enabled }
}

// NewEngine prepares playback of assets paced to total. Decoding of the audio payload starts
// immediately in the background. device may be nil for silent playback.
func NewEngine(assets *story.GeneratedAssets, total time.Duration, device *Device, opts ...Option) *Engine {
	e := &Engine{
		device:    device,
		newTicker: newRealTicker,
		subs:      make(map[int]chan State),
		settled:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	payload := ""
	if assets != nil {
		e.script = story.CloneScript(assets.Script)
		payload = assets.AudioData
	}
	e.setTotalLocked(total)

	go e.decode(payload)
	return e
}

func (e *Engine) decode(payload string) {
	defer close(e.settled)

	samples, err := DecodePCM16(payload)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		logger.Warn("audio disabled for this video", logger.ErrorField(err))
		return
	}
	if e.closed {
		return
	}
	e.samples = samples
	e.state.AudioReady = true
	logger.Debug("audio decoded",
		logger.Int("samples", len(samples)),
		logger.Duration("length", SampleDuration(len(samples))),
	)
	e.notifyLocked()
}

// AudioSettled is closed once the decode attempt has finished, successfully or not.
func (e *Engine) AudioSettled() <-chan struct{} { return e.settled }

// MinSlot is the shortest time a scene stays on screen.
const MinSlot = time.Millisecond

func (e *Engine) setTotalLocked(total time.Duration) {
	if total < time.Millisecond {
		total = story.DefaultDuration
	}
	e.total = total
	e.slot = SlotDuration(total, len(e.script))
	if len(e.script) > 0 && e.slot < MinSlot {
		e.slot = MinSlot
	}
}

// SetTotalDuration changes the pacing. A running timer restarts with the new slot; the index
// and the audio are left alone.
func (e *Engine) SetTotalDuration(total time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setTotalLocked(total)
	if e.state.Playing && !e.closed {
		e.startTimerLocked()
	}
}

// Slot is the current per-scene duration.
func (e *Engine) Slot() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slot
}

// Len is the number of scenes.
func (e *Engine) Len() int { return len(e.script) }

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the scene on screen and, with subtitles enabled, its subtitle line.
func (e *Engine) Current() (story.Scene, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.script) == 0 {
		return story.Scene{}, ""
	}
	scene := e.script[e.state.Index]
	if !e.subtitles {
		return scene, ""
	}
	return scene, scene.Narration
}

// Play starts a paused slideshow. It has no effect while playing or ended.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.state.Playing || e.state.Ended || len(e.script) == 0 {
		return
	}
	e.state.Playing = true
	e.startAudioLocked()
	e.startTimerLocked()
	e.notifyLocked()
}

// Pause stops the timer and the audio. The index is kept.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.state.Playing {
		return
	}
	e.state.Playing = false
	e.stopTimerLocked()
	e.stopAudioLocked()
	e.notifyLocked()
}

// Replay restarts an ended slideshow from the first scene.
func (e *Engine) Replay() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.state.Ended {
		return
	}
	e.state.Index = 0
	e.state.Ended = false
	e.state.Playing = true
	e.startAudioLocked()
	e.startTimerLocked()
	e.notifyLocked()
}

// Toggle is the single play button: replay when ended, pause when playing, play otherwise.
func (e *Engine) Toggle() {
	st := e.State()
	switch {
	case st.Ended:
		e.Replay()
	case st.Playing:
		e.Pause()
	default:
		e.Play()
	}
}

// Close stops the timer and audio for good and ends every subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.state.Playing = false
	e.stopTimerLocked()
	e.stopAudioLocked()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
}

// Subscribe returns a channel of state changes and a function that ends the subscription.
// The current state is delivered first. A slow reader misses intermediate states rather than
// blocking playback.
func (e *Engine) Subscribe() (<-chan State, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan State, 32)
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- e.state
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			close(c)
			delete(e.subs, id)
		}
	}
}

func (e *Engine) notifyLocked() {
	for _, ch := range e.subs {
		select {
		case ch <- e.state:
		default:
			logger.Debug("playback subscriber lagging, state dropped", logger.Int("index", e.state.Index))
		}
	}
}

func (e *Engine) startTimerLocked() {
	e.stopTimerLocked()
	if e.slot < MinSlot {
		e.slot = MinSlot
	}
	run := e.run
	stop := make(chan struct{})
	e.stopTick = stop
	t := e.newTicker(e.slot)
	go e.loop(run, t, stop)
}

func (e *Engine) stopTimerLocked() {
	e.run++
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

func (e *Engine) loop(run uint64, t Ticker, stop <-chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !e.tick(run) {
				return
			}
		}
	}
}

// tick advances one scene. It reports whether the timer should keep running.
func (e *Engine) tick(run uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if run != e.run || !e.state.Playing {
		return false
	}
	if e.state.Index+1 >= len(e.script) {
		e.state.Playing = false
		e.state.Ended = true
		e.stopTimerLocked()
		e.stopAudioLocked()
		e.notifyLocked()
		return false
	}
	e.state.Index++
	e.notifyLocked()
	return true
}

func (e *Engine) startAudioLocked() {
	e.stopAudioLocked()
	if !e.state.AudioReady || e.device == nil {
		return
	}
	v, err := e.device.Start(e.samples)
	if err != nil {
		logger.Warn("audio playback failed", logger.ErrorField(err))
		return
	}
	e.voice = v
}

func (e *Engine) stopAudioLocked() {
	if e.voice != nil {
		e.voice.Stop()
		e.voice = nil
	}
}
