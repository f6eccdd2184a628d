package client

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	defaultTickInterval  = 100 * time.Millisecond
	defaultSilenceWindow = 2000 * time.Millisecond
	defaultThresholdDb   = -40.0

	// silenceFloorDb stands in for the log of zero energy.
	silenceFloorDb = -96.0
)

// VADConfig tunes the voice activity detector. Zero values take the defaults.
type VADConfig struct {
	// ThresholdDb is the RMS level above which a tick counts as speech.
	ThresholdDb float64
	// SilenceWindow is how long speech must be absent before the turn ends.
	SilenceWindow time.Duration
	// TickInterval is how often accumulated audio is evaluated.
	TickInterval time.Duration

	// Clock is injectable for tests; nil means the wall clock.
	Clock clock.Clock
}

// VoiceActivityDetector watches the outgoing audio for the end of the user's
// turn: once speech has been heard, a sustained window of silence fires the
// turn-end callback exactly once. Detection is advisory and never fails the
// capture path.
type VoiceActivityDetector struct {
	thresholdDb   float64
	silenceWindow time.Duration
	tickInterval  time.Duration
	clock         clock.Clock
	onTurnEnd     func()
	logger        *zap.Logger

	mu         sync.Mutex
	pending    []byte
	speechSeen bool
	lastVoice  time.Time
	fired      bool
	ticker     *clock.Ticker
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewVoiceActivityDetector creates a detector that calls onTurnEnd when the
// user stops talking.
func NewVoiceActivityDetector(cfg VADConfig, onTurnEnd func(), logger *zap.Logger) *VoiceActivityDetector {
	if cfg.ThresholdDb == 0 {
		cfg.ThresholdDb = defaultThresholdDb
	}
	if cfg.SilenceWindow == 0 {
		cfg.SilenceWindow = defaultSilenceWindow
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &VoiceActivityDetector{
		thresholdDb:   cfg.ThresholdDb,
		silenceWindow: cfg.SilenceWindow,
		tickInterval:  cfg.TickInterval,
		clock:         cfg.Clock,
		onTurnEnd:     onTurnEnd,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins periodic evaluation.
func (v *VoiceActivityDetector) Start() {
	v.mu.Lock()
	if v.ticker != nil {
		v.mu.Unlock()
		return
	}
	v.ticker = v.clock.Ticker(v.tickInterval)
	ticker := v.ticker
	v.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				v.tick()
			case <-v.stop:
				return
			}
		}
	}()
}

// Stop halts evaluation. Safe to call more than once.
func (v *VoiceActivityDetector) Stop() {
	v.stopOnce.Do(func() {
		close(v.stop)
		v.mu.Lock()
		if v.ticker != nil {
			v.ticker.Stop()
		}
		v.mu.Unlock()
	})
}

// Feed accumulates captured PCM for the next evaluation tick.
func (v *VoiceActivityDetector) Feed(pcm []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fired {
		return
	}
	v.pending = append(v.pending, pcm...)
}

// tick evaluates the audio accumulated since the last tick. An empty window
// counts as silence.
func (v *VoiceActivityDetector) tick() {
	v.mu.Lock()
	if v.fired {
		v.mu.Unlock()
		return
	}

	level := rmsDb(v.pending)
	v.pending = v.pending[:0]
	now := v.clock.Now()

	if level > v.thresholdDb {
		v.speechSeen = true
		v.lastVoice = now
		v.mu.Unlock()
		return
	}

	shouldFire := v.speechSeen && now.Sub(v.lastVoice) >= v.silenceWindow
	if shouldFire {
		v.fired = true
	}
	v.mu.Unlock()

	if shouldFire && v.onTurnEnd != nil {
		v.onTurnEnd()
	}
}

// rmsDb computes the RMS level of 16-bit little-endian PCM in dBFS. A trailing
// odd byte is ignored.
func rmsDb(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return silenceFloorDb
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		f := float64(s) / 32768.0
		sum += f * f
	}

	rms := math.Sqrt(sum / float64(n))
	if rms <= 0 {
		return silenceFloorDb
	}
	return 20 * math.Log10(rms)
}
