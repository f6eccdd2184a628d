package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/client"
	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
)

// voiceclient drives one voice turn from a raw PCM file: it streams the
// recording over the duplex channel in real-time-sized frames, prints the
// transcript events as they arrive, and writes the synthesized reply audio to
// a file. If the channel drops mid-turn it recovers through the fallback path.

const frameBytes = entities.SampleRate * entities.BytesPerSample / 10 // 100ms

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "websocket endpoint")
	baseURL := flag.String("base", "http://localhost:8080", "HTTP base for the fallback path")
	audioPath := flag.String("audio", "", "raw 16-bit 16kHz mono PCM file to send")
	outPath := flag.String("out", "reply.pcm", "file for the synthesized reply audio")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *audioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: voiceclient -audio recording.pcm [-server ws://...] [-out reply.pcm]")
		os.Exit(1)
	}

	recording, err := os.ReadFile(*audioPath)
	if err != nil {
		logger.Fatal("Failed to read audio file", zap.Error(err))
	}

	out, err := os.Create(*outPath)
	if err != nil {
		logger.Fatal("Failed to create output file", zap.Error(err))
	}
	defer out.Close()

	scheduler := client.NewPlaybackScheduler(&fileSink{f: out}, nil, logger)

	turnDone := make(chan struct{})
	var finalTranscript string

	channel := client.NewDuplexAudioChannel(*serverURL, client.Callbacks{
		OnConnectionEstablished: func(sessionID string) {
			fmt.Printf("session: %s\n", sessionID)
		},
		OnPartialTranscript: func(text string) {
			fmt.Printf("  ... %s\n", text)
		},
		OnFinalTranscript: func(text string) {
			finalTranscript = text
			fmt.Printf("you said: %s\n", text)
		},
		OnTranscriptionError: func(message string) {
			fmt.Printf("transcription failed: %s\n", message)
		},
		OnAudioChunk: func(data string) {
			scheduler.Enqueue(data)
		},
		OnAudioStreamEnd: func() {
			scheduler.Finish(nil)
		},
		OnTurnEnd: func() {
			close(turnDone)
		},
		OnError: func(message string) {
			fmt.Printf("server error: %s\n", message)
		},
		OnClosed: func(err error) {
			if err != nil {
				logger.Warn("Channel closed with error", zap.Error(err))
			}
		},
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := channel.Open(ctx); err != nil {
		logger.Fatal("Failed to open channel", zap.Error(err))
	}
	defer channel.Close()

	// The detector ends the turn early when the tail of the recording is
	// silence; otherwise we stop at end of file.
	vad := client.NewVoiceActivityDetector(client.VADConfig{}, func() {
		fmt.Println("silence detected, ending turn")
		channel.SendStop()
	}, logger)
	vad.Start()
	defer vad.Stop()

	frameDuration := entities.PCMDuration(frameBytes)
	for off := 0; off < len(recording); off += frameBytes {
		end := off + frameBytes
		if end > len(recording) {
			end = len(recording)
		}
		frame := recording[off:end]

		if err := channel.SendAudioFrame(frame); err != nil {
			logger.Warn("Channel dropped mid-turn, recovering", zap.Error(err))
			recovery := client.NewFallbackRecoveryPath(
				client.FallbackConfig{BaseURL: *baseURL},
				channel.SessionID(),
				func(t string) bool { return t == finalTranscript && t != "" },
				logger,
			)
			result, rerr := recovery.Run(ctx, channel.Recording())
			if rerr != nil {
				logger.Fatal("Recovery failed", zap.Error(rerr))
			}
			if result == nil {
				fmt.Println("turn already completed on the streaming channel")
				return
			}
			fmt.Printf("recovered (%s): %s\n%s\n", result.Source, result.Transcription, result.Reply)
			return
		}
		vad.Feed(frame)
		time.Sleep(frameDuration)
	}
	channel.SendStop()

	select {
	case <-turnDone:
		fmt.Printf("reply audio written to %s\n", *outPath)
	case <-ctx.Done():
		logger.Fatal("Timed out waiting for turn to finish")
	}
}

// fileSink writes scheduled PCM to a file in schedule order.
type fileSink struct {
	f *os.File
}

func (s *fileSink) Play(pcm []byte, start time.Time) {
	s.f.Write(pcm)
}

func (s *fileSink) Close() error {
	return s.f.Sync()
}
