package client

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
)

// teardownLinger keeps the sink alive briefly past the last scheduled chunk so
// its tail is not cut off.
const teardownLinger = 500 * time.Millisecond

// AudioSink renders scheduled PCM. Implementations own the audio device.
type AudioSink interface {
	// Play renders pcm beginning at start. Calls arrive with non-overlapping,
	// monotonically increasing start times.
	Play(pcm []byte, start time.Time)
	Close() error
}

// PlaybackScheduler turns the server's base64 audio chunks into gapless
// playback. Each chunk is scheduled at the later of now and the end of the
// previous chunk, so bursts queue up back to back and gaps restart cleanly at
// the current time. Chunks that fail to decode are skipped; playback position
// is never corrupted by a bad chunk.
type PlaybackScheduler struct {
	sink   AudioSink
	clock  clock.Clock
	logger *zap.Logger

	mu        sync.Mutex
	cursor    time.Time
	paused    bool
	pausedAt  time.Time
	pending   [][]byte
	stopped   bool
	scheduled int
	skipped   int
}

// NewPlaybackScheduler creates a scheduler over a sink. clk may be nil for the
// wall clock.
func NewPlaybackScheduler(sink AudioSink, clk clock.Clock, logger *zap.Logger) *PlaybackScheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &PlaybackScheduler{
		sink:   sink,
		clock:  clk,
		logger: logger,
	}
}

// Enqueue decodes one base64 chunk and schedules it. A chunk that fails to
// decode is dropped without disturbing the schedule; a chunk arriving while
// paused is queued and scheduled on Resume.
func (p *PlaybackScheduler) Enqueue(dataBase64 string) {
	pcm, err := base64.StdEncoding.DecodeString(dataBase64)
	if err != nil {
		p.mu.Lock()
		p.skipped++
		p.mu.Unlock()
		p.logger.Warn("Skipping undecodable audio chunk", zap.Error(err))
		return
	}
	if len(pcm) == 0 {
		return
	}

	p.schedule(pcm)
}

func (p *PlaybackScheduler) schedule(pcm []byte) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if p.paused {
		p.pending = append(p.pending, pcm)
		p.mu.Unlock()
		return
	}

	now := p.clock.Now()
	start := p.cursor
	if now.After(start) {
		start = now
	}
	p.cursor = start.Add(entities.PCMDuration(len(pcm)))
	p.scheduled++
	p.mu.Unlock()

	p.sink.Play(pcm, start)
}

// Pause suspends the playback clock. Chunks arriving while paused are queued;
// already-scheduled audio keeps playing.
func (p *PlaybackScheduler) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.stopped {
		return
	}
	p.paused = true
	p.pausedAt = p.clock.Now()
}

// Resume shifts the cursor by the paused interval, so audio pending at pause
// time keeps its remaining runway, then schedules everything queued while
// paused.
func (p *PlaybackScheduler) Resume() {
	p.mu.Lock()
	if !p.paused {
		p.mu.Unlock()
		return
	}
	p.paused = false
	p.cursor = p.cursor.Add(p.clock.Now().Sub(p.pausedAt))
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, pcm := range pending {
		p.schedule(pcm)
	}
}

// Stop permanently stops accepting chunks and closes the sink.
func (p *PlaybackScheduler) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.pending = nil
	p.mu.Unlock()

	if err := p.sink.Close(); err != nil {
		p.logger.Warn("Failed to close audio sink", zap.Error(err))
	}
}

// Finish handles end of stream: once everything scheduled has played out,
// plus a short linger, the sink is closed and done (if non-nil) is called.
func (p *PlaybackScheduler) Finish(done func()) {
	p.mu.Lock()
	remaining := p.cursor.Sub(p.clock.Now())
	p.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}

	p.clock.AfterFunc(remaining+teardownLinger, func() {
		p.Stop()
		if done != nil {
			done()
		}
	})
}

// Stats reports how many chunks were scheduled and skipped.
func (p *PlaybackScheduler) Stats() (scheduled, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduled, p.skipped
}
