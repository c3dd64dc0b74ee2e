// Package render is the consumer side of the streaming backbone: it drains
// an SRB ring through a PortAudio playback stream, reacting to anchors as
// they come due instead of just the raw byte stream.
package render

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"streambridge/internal/config"
	"streambridge/internal/feed"
	"streambridge/pkg/rbcore"
	"streambridge/pkg/srb"

	"github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
)

// Source is the subset of *srb.Ring the renderer drains.
type Source interface {
	Read(dst []byte, timeout time.Duration) (int, error)
	GetAnchor() (srb.Anchor, error)
}

// Render is the PortAudio playback consumer.
type Render struct {
	config      *config.RenderConfig
	readTimeout time.Duration
	source      Source

	mutex         sync.RWMutex
	completeMutex sync.RWMutex
	playbackWg    sync.WaitGroup

	isPlaying     bool
	audioComplete bool
	interrupted   bool

	stream *portaudio.Stream

	ctx    context.Context
	cancel context.CancelFunc

	enableDebug bool
}

// New creates a renderer draining source. readTimeout bounds each
// per-callback Read; cmd/streambridge supplies it from
// config.BufferConfig.AnchorFetchTimeout.
func New(parentCtx context.Context, cfg *config.RenderConfig, readTimeout time.Duration, source Source, enableDebug bool) *Render {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Render{
		config:      cfg,
		readTimeout: readTimeout,
		source:      source,
		ctx:         ctx,
		cancel:      cancel,
		enableDebug: enableDebug,
	}
}

// Start begins playback; it returns immediately, opening and starting the
// callback stream in a goroutine.
func (r *Render) Start() {
	r.mutex.Lock()
	if !r.isPlaying {
		r.isPlaying = true
		r.playbackWg.Add(1)
		go r.playLoop()
	}
	r.mutex.Unlock()
}

// Stop tears down the playback stream.
func (r *Render) Stop() error {
	r.cancel()

	r.mutex.Lock()
	if r.stream != nil {
		if err := r.stream.Abort(); err != nil {
			log.Printf("render: failed to abort stream: %v", err)
		}
		if err := r.stream.Close(); err != nil {
			log.Printf("render: failed to close stream: %v", err)
		}
		r.stream = nil
	}
	r.mutex.Unlock()

	return nil
}

// StopPlayback interrupts the current stream without waiting for the
// buffered audio to drain, used when a new utterance preempts this one.
func (r *Render) StopPlayback() {
	r.mutex.Lock()
	wasPlaying := r.isPlaying
	if r.stream != nil && r.isPlaying {
		r.interrupted = true
		r.isPlaying = false
		if err := r.stream.Abort(); err != nil {
			log.Printf("render: failed to abort stream: %v", err)
		}
	}
	r.mutex.Unlock()

	if wasPlaying {
		r.playbackWg.Wait()
	}
	r.SetComplete(false)
}

// SetComplete marks whether the upstream has signalled the current
// utterance is fully buffered.
func (r *Render) SetComplete(complete bool) {
	r.completeMutex.Lock()
	r.audioComplete = complete
	r.completeMutex.Unlock()
}

// IsPlaying reports whether a playback stream is currently open.
func (r *Render) IsPlaying() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.isPlaying
}

func (r *Render) playLoop() {
	defer func() {
		r.mutex.Lock()
		wasInterrupted := r.interrupted
		r.isPlaying = false
		r.interrupted = false
		if r.stream != nil {
			if !wasInterrupted {
				select {
				case <-r.ctx.Done():
					r.stream.Abort()
				default:
					r.stream.Stop()
				}
			}
			r.stream.Close()
			r.stream = nil
		}
		r.mutex.Unlock()
		r.playbackWg.Done()
	}()

	var shouldStop bool
	emptyCount := 0
	lastDataTime := time.Now()

	format := &audio.Format{
		NumChannels: r.config.Channels,
		SampleRate:  r.config.SampleRate,
	}

	var err error
	r.stream, err = portaudio.OpenDefaultStream(
		0, r.config.Channels,
		float64(r.config.SampleRate),
		0,
		func(out []int16) {
			outBytes := make([]byte, len(out)*2)
			n, readErr := r.source.Read(outBytes, r.readTimeout)

			if errors.Is(readErr, rbcore.ErrFetchAnchor) {
				r.handleAnchor()
			}

			if n > 0 {
				lastDataTime = time.Now()
				emptyCount = 0
			} else {
				emptyCount++
			}

			buf := bytesToIntBuffer(outBytes[:n], format)
			intBufferToInt16(buf, out)
			for i := n / 2; i < len(out); i++ {
				out[i] = 0
			}

			r.completeMutex.RLock()
			complete := r.audioComplete
			r.completeMutex.RUnlock()

			if complete && n == 0 {
				shouldStop = true
			}
			if time.Since(lastDataTime) > 5*time.Second {
				shouldStop = true
			}
			if emptyCount >= 10 {
				shouldStop = true
			}
			if errors.Is(readErr, rbcore.ErrWriterFinished) || errors.Is(readErr, rbcore.ErrAborted) {
				shouldStop = true
			}
		},
	)
	if err != nil {
		log.Printf("render: failed to open stream: %v", err)
		return
	}

	if err := r.stream.Start(); err != nil {
		log.Printf("render: failed to start stream: %v", err)
		r.stream.Close()
		r.stream = nil
		return
	}

	if r.enableDebug {
		log.Println("render: playback started")
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for !shouldStop {
		select {
		case <-ticker.C:
			r.mutex.RLock()
			interrupted := r.interrupted
			r.mutex.RUnlock()
			if interrupted {
				return
			}
		case <-r.ctx.Done():
			return
		}
	}
}

// handleAnchor pops the anchor that made Read return ErrFetchAnchor and
// reacts to it. A format-change anchor logs the new format (PortAudio's
// stream is already open at a fixed rate; renegotiating it is future work,
// see DESIGN.md). A silence gap is treated like ordinary empty reads.
func (r *Render) handleAnchor() {
	a, err := r.source.GetAnchor()
	if err != nil {
		return
	}
	marker, ok := a.Payload.(feed.Marker)
	if !ok {
		return
	}
	switch marker.Kind {
	case feed.MarkerFormatChange:
		if r.enableDebug {
			log.Printf("render: format change at offset %d -> %dHz/%dch", a.Offset, marker.SampleRate, marker.Channels)
		}
	case feed.MarkerUtteranceBoundary:
		if r.enableDebug {
			log.Printf("render: utterance boundary at offset %d for chat %s", a.Offset, marker.ChatID)
		}
		r.SetComplete(true)
	case feed.MarkerSilenceGap:
		if r.enableDebug {
			log.Printf("render: silence gap at offset %d", a.Offset)
		}
	}
}
