package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"talkbox/internal/domain"
	"talkbox/internal/ports"
)

const defaultMaxRecordingSeconds = 60

// ClipHandler receives the finished clip of a recording.
type ClipHandler func(ctx context.Context, clip domain.AudioClip)

// RecorderConfig controls microphone recording behavior.
type RecorderConfig struct {
	Audio        ports.AudioConfig
	ChunkSize    int
	MaxSeconds   int
	TickInterval time.Duration
	NewTicker    ports.TickerFactory
}

// Recorder is the recording session state machine: Idle -> Recording -> Stopping -> Idle.
type Recorder struct {
	capture   ports.AudioCapture
	assembler clipAssembler
	observer  ports.RecordingObserver
	onClip    ClipHandler
	cfg       RecorderConfig
	logger    zerolog.Logger

	mu      sync.Mutex
	current *activeRecording
}

func NewRecorder(
	capture ports.AudioCapture,
	encoder ports.ClipEncoder,
	observer ports.RecordingObserver,
	onClip ClipHandler,
	cfg RecorderConfig,
	logger zerolog.Logger,
) *Recorder {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.MaxSeconds <= 0 {
		cfg.MaxSeconds = defaultMaxRecordingSeconds
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = ports.NewTimeTicker
	}
	return &Recorder{
		capture:   capture,
		assembler: clipAssembler{encoder: encoder},
		observer:  observer,
		onClip:    onClip,
		cfg:       cfg,
		logger:    logger.With().Str("component", "recorder").Logger(),
	}
}

// Start opens the microphone and begins recording. It is a no-op while a
// recording is active or still releasing the device.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.logger.Debug().Msg("start ignored, recording already active")
		return nil
	}

	captureCtx, cancel := context.WithCancel(ctx)
	audio, err := r.capture.Start(captureCtx, r.cfg.Audio)
	if err != nil {
		cancel()
		if !errors.Is(err, domain.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		}
		return err
	}

	active := &activeRecording{
		parent:   ctx,
		cancel:   cancel,
		audio:    audio,
		ticker:   r.cfg.NewTicker(r.cfg.TickInterval),
		state:    domain.SessionStateRecording,
		chunks:   newChunkBuffer(),
		stopTick: make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	r.current = active

	go pumpAudioChunks(active.audio, active.chunks, r.cfg.ChunkSize, r.logger, active.pumpDone)
	go r.tickLoop(active)

	r.logger.Info().Int("maxSeconds", r.cfg.MaxSeconds).Msg("recording started")
	r.observer.RecordingStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted, 0)
	return nil
}

// Stop ends the active recording and hands the clip over. Stopping while
// idle does nothing.
func (r *Recorder) Stop(_ context.Context) error {
	active := r.getCurrent()
	if active == nil {
		return nil
	}
	return r.finish(active, domain.SessionReasonRecordingStopped, true)
}

// Abort releases the microphone and discards whatever was captured.
func (r *Recorder) Abort() error {
	active := r.getCurrent()
	if active == nil {
		return nil
	}
	return r.finish(active, domain.SessionReasonRecordingDiscarded, false)
}

// Status returns the recording state and elapsed seconds.
func (r *Recorder) Status() (domain.SessionState, int) {
	active := r.getCurrent()
	if active == nil {
		return domain.SessionStateIdle, 0
	}
	return active.snapshot()
}

func (r *Recorder) getCurrent() *activeRecording {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Recorder) tickLoop(active *activeRecording) {
	defer active.ticker.Stop()

	for {
		select {
		case <-active.stopTick:
			return
		case <-active.ticker.C():
			elapsed, ok := active.tick()
			if !ok {
				return
			}
			r.observer.RecordingStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingTick, elapsed)
			if elapsed >= r.cfg.MaxSeconds {
				r.logger.Info().Int("elapsed", elapsed).Msg("maximum recording duration reached")
				_ = r.finish(active, domain.SessionReasonMaxDuration, true)
				return
			}
		}
	}
}

// finish never waits on the tick goroutine, which may be the caller.
func (r *Recorder) finish(active *activeRecording, reason domain.SessionStateReason, deliver bool) error {
	elapsed, ok := active.beginStop()
	if !ok {
		return nil
	}
	close(active.stopTick)
	r.observer.RecordingStateChanged(domain.SessionStateStopping, reason, elapsed)

	stopErr := active.audio.Stop()
	if stopErr != nil {
		r.logger.Warn().Err(stopErr).Msg("failed to stop audio capture cleanly")
	}
	<-active.pumpDone
	if err := active.audio.Close(); err != nil {
		r.logger.Debug().Err(err).Msg("failed to release audio capture")
	}
	active.cancel()

	var (
		clip        domain.AudioClip
		assembleErr error
	)
	if deliver {
		clip, assembleErr = r.assembler.Assemble(active.chunks, elapsed)
	} else {
		active.chunks.Take()
	}

	active.setState(domain.SessionStateIdle)
	r.mu.Lock()
	if r.current == active {
		r.current = nil
	}
	r.mu.Unlock()

	if deliver && assembleErr != nil {
		if errors.Is(assembleErr, errNoAudio) {
			r.logger.Warn().Int("elapsed", elapsed).Msg("recording produced no audio")
			r.observer.RecordingStateChanged(domain.SessionStateIdle, domain.SessionReasonNoAudio, elapsed)
			return nil
		}
		r.logger.Error().Err(assembleErr).Msg("failed to assemble recording")
		r.observer.RecordingStateChanged(domain.SessionStateIdle, reason, elapsed)
		return assembleErr
	}

	r.logger.Info().Int("elapsed", elapsed).Str("reason", string(reason)).Msg("recording finished")
	r.observer.RecordingStateChanged(domain.SessionStateIdle, reason, elapsed)

	if deliver && r.onClip != nil {
		r.onClip(active.parent, clip)
	}
	return nil
}
