package entities

import "time"

// Outbound audio frames are raw 16-bit signed linear PCM, mono, 16 kHz, with
// no container or header. Frames carry no sequence numbers; the transport must
// be order-preserving.
const (
	SampleRate     = 16000
	BytesPerSample = 2
	Channels       = 1
)

// PCMDuration returns the play time of n bytes of raw PCM at the wire format.
func PCMDuration(n int) time.Duration {
	samples := n / (BytesPerSample * Channels)
	return time.Duration(samples) * time.Second / SampleRate
}
