package client

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// loudFrame is 100ms of constant-amplitude samples well above the threshold.
func loudFrame() []byte {
	n := 1600
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(8000)))
	}
	return pcm
}

type turnEndCounter struct {
	mu    sync.Mutex
	count int
}

func (c *turnEndCounter) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *turnEndCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// advance steps the mock clock one tick at a time so the detector's ticker
// goroutine gets to run between ticks.
func advance(mock *clock.Mock, d, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		mock.Add(step)
		time.Sleep(time.Millisecond)
	}
}

func TestVADFiresAfterSilenceWindow(t *testing.T) {
	mock := clock.NewMock()
	counter := &turnEndCounter{}
	vad := NewVoiceActivityDetector(VADConfig{Clock: mock}, counter.fire, zap.NewNop())
	vad.Start()
	defer vad.Stop()

	// Half a second of speech.
	for i := 0; i < 5; i++ {
		vad.Feed(loudFrame())
		advance(mock, defaultTickInterval, defaultTickInterval)
	}
	if counter.get() != 0 {
		t.Fatal("fired during speech")
	}

	// Silence, but not yet a full window.
	advance(mock, defaultSilenceWindow-defaultTickInterval, defaultTickInterval)
	if counter.get() != 0 {
		t.Fatal("fired before the silence window elapsed")
	}

	// Crossing the window fires exactly once.
	advance(mock, 2*defaultTickInterval, defaultTickInterval)
	if got := counter.get(); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}

	// Further silence must not fire again.
	advance(mock, defaultSilenceWindow, defaultTickInterval)
	if got := counter.get(); got != 1 {
		t.Fatalf("fired %d times after window, want 1", got)
	}
}

func TestVADIgnoresSilenceBeforeSpeech(t *testing.T) {
	mock := clock.NewMock()
	counter := &turnEndCounter{}
	vad := NewVoiceActivityDetector(VADConfig{Clock: mock}, counter.fire, zap.NewNop())
	vad.Start()
	defer vad.Stop()

	// Silence with no speech ever heard: never fires.
	advance(mock, 3*defaultSilenceWindow, defaultTickInterval)
	if got := counter.get(); got != 0 {
		t.Fatalf("fired %d times without any speech", got)
	}
}

func TestVADSpeechResetsWindow(t *testing.T) {
	mock := clock.NewMock()
	counter := &turnEndCounter{}
	vad := NewVoiceActivityDetector(VADConfig{Clock: mock}, counter.fire, zap.NewNop())
	vad.Start()
	defer vad.Stop()

	vad.Feed(loudFrame())
	advance(mock, defaultTickInterval, defaultTickInterval)

	// Nearly a full window of silence, then speech again.
	advance(mock, defaultSilenceWindow-2*defaultTickInterval, defaultTickInterval)
	vad.Feed(loudFrame())
	advance(mock, defaultTickInterval, defaultTickInterval)

	// The window restarts from the last speech.
	advance(mock, defaultSilenceWindow-2*defaultTickInterval, defaultTickInterval)
	if counter.get() != 0 {
		t.Fatal("fired even though speech reset the window")
	}

	advance(mock, 3*defaultTickInterval, defaultTickInterval)
	if got := counter.get(); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}
}

func TestRMSLevels(t *testing.T) {
	if got := rmsDb(nil); got != silenceFloorDb {
		t.Errorf("rmsDb(nil) = %v, want floor", got)
	}
	if got := rmsDb(make([]byte, 320)); got != silenceFloorDb {
		t.Errorf("rmsDb(zeros) = %v, want floor", got)
	}

	loud := rmsDb(loudFrame())
	if loud < -15 || loud > -10 {
		t.Errorf("rmsDb(loud) = %v, want around -12dB", loud)
	}
	if loud <= defaultThresholdDb {
		t.Errorf("loud frame %vdB not above threshold %vdB", loud, defaultThresholdDb)
	}
}
