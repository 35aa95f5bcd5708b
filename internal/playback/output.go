package playback

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/ivlev/story2video/internal/logger"
	"github.com/ivlev/story2video/internal/system"
)

// Voice is one sounding instance of an audio buffer.
type Voice interface {
	// Stop silences the voice. It is safe to call more than once.
	Stop()
	// Done is closed when the voice has finished or was stopped.
	Done() <-chan struct{}
}

// Backend renders samples to some output.
type Backend interface {
	Start(samples []float32) (Voice, error)
	Close() error
}

// Device is the single audio output of the process. The backend is opened on first use and
// kept for later engines and runs. Starting a voice always stops the previous one, so at most
// one voice is audible.
type Device struct {
	open func() (Backend, error)

	mu      sync.Mutex
	backend Backend
	current Voice
}

// NewDevice returns a device that opens its backend with open when first needed.
func NewDevice(open func() (Backend, error)) *Device {
	return &Device{open: open}
}

// Start stops the current voice and starts samples from the beginning.
func (d *Device) Start(samples []float32) (Voice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != nil {
		d.current.Stop()
		d.current = nil
	}
	if d.backend == nil {
		b, err := d.open()
		if err != nil {
			return nil, fmt.Errorf("open audio backend: %w", err)
		}
		d.backend = b
	}

	v, err := d.backend.Start(samples)
	if err != nil {
		return nil, err
	}
	d.current = v
	return v, nil
}

// Stop silences whatever is playing.
func (d *Device) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil {
		d.current.Stop()
		d.current = nil
	}
}

// Opened reports whether the backend has been acquired.
func (d *Device) Opened() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backend != nil
}

// Close stops playback and releases the backend. The device reopens it on next Start.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil {
		d.current.Stop()
		d.current = nil
	}
	if d.backend == nil {
		return nil
	}
	err := d.backend.Close()
	d.backend = nil
	return err
}

// OpenDefault picks ffplay when it can be found and a silent backend otherwise.
func OpenDefault(ffplayPath string) func() (Backend, error) {
	return func() (Backend, error) {
		path, err := system.LookupPlayer(ffplayPath)
		if err != nil {
			logger.Warn("audio disabled, no player available", logger.ErrorField(err))
			return NullBackend{}, nil
		}
		logger.Info("audio output opened", logger.String("player", path))
		return &FFplayBackend{Path: path}, nil
	}
}

// FFplayBackend plays each voice through its own ffplay process reading raw PCM from stdin.
type FFplayBackend struct {
	Path string
}

func (b *FFplayBackend) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nodisp",
		"-autoexit",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-i", "-",
	}
}

func (b *FFplayBackend) Start(samples []float32) (Voice, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, b.Path, b.args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", b.Path, err)
	}

	v := &processVoice{cancel: cancel, done: make(chan struct{})}
	go func() {
		buf := system.GetBuffer(2 * len(samples))
		defer system.PutBuffer(buf)
		buf.Write(AppendPCM16(buf.AvailableBuffer(), samples))
		if _, err := io.Copy(stdin, buf); err != nil && ctx.Err() == nil {
			logger.Warn("audio pipe closed early", logger.ErrorField(err))
		}
		stdin.Close()
	}()
	go func() {
		err := cmd.Wait()
		if err != nil && ctx.Err() == nil {
			logger.Warn("audio player exited", logger.ErrorField(err))
		}
		close(v.done)
	}()
	return v, nil
}

func (b *FFplayBackend) Close() error { return nil }

type processVoice struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (v *processVoice) Stop()                 { v.cancel() }
func (v *processVoice) Done() <-chan struct{} { return v.done }

// NullBackend discards audio. Its voices last as long as the samples would have played.
type NullBackend struct{}

func (NullBackend) Start(samples []float32) (Voice, error) {
	v := &timedVoice{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		t := time.NewTimer(SampleDuration(len(samples)))
		defer t.Stop()
		select {
		case <-t.C:
		case <-v.stop:
		}
		close(v.done)
	}()
	return v, nil
}

func (NullBackend) Close() error { return nil }

type timedVoice struct {
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (v *timedVoice) Stop() {
	v.once.Do(func() { close(v.stop) })
}

func (v *timedVoice) Done() <-chan struct{} { return v.done }
