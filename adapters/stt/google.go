package stt

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud. Interim results
// are enabled so the stream yields superseding partial transcripts before the
// final one.
type GoogleSpeechToText struct {
	logger *zap.Logger
}

// NewGoogleSpeechToText creates the Google Cloud STT adapter. Credentials come
// from the ambient GOOGLE_APPLICATION_CREDENTIALS environment.
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{logger: logger}
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	grpcStream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		grpcStream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("unsupported audio encoding: %s", config.Encoding)
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:        encoding,
		SampleRateHertz: int32(config.SampleRate),
		LanguageCode:    config.Language,
	}

	if err := grpcStream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:          recognitionConfig,
				InterimResults:  true,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		grpcStream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	s := &googleStream{
		client: client,
		stream: grpcStream,
		ctx:    ctx,
		events: make(chan entities.TranscriptEvent, 16),
		logger: g.logger,
	}
	go s.receiveResults()

	return s, nil
}

type googleStream struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	ctx    context.Context
	events chan entities.TranscriptEvent
	logger *zap.Logger

	mu            sync.Mutex
	audioReceived bool
	finished      bool
}

func (g *googleStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.mu.Lock()
	if g.finished {
		g.mu.Unlock()
		return fmt.Errorf("stream already finished")
	}
	g.audioReceived = true
	g.mu.Unlock()

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}

	return nil
}

func (g *googleStream) Finish() error {
	g.mu.Lock()
	if g.finished {
		g.mu.Unlock()
		return nil
	}
	g.finished = true
	g.mu.Unlock()

	if err := g.stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (g *googleStream) Events() <-chan entities.TranscriptEvent {
	return g.events
}

// receiveResults pumps recognition responses into the event channel. Exactly
// one terminal event (final or error) precedes close.
func (g *googleStream) receiveResults() {
	defer close(g.events)
	defer g.client.Close()

	var finalTranscription string

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			g.mu.Lock()
			received := g.audioReceived
			g.mu.Unlock()
			if !received {
				g.events <- entities.TranscriptError{Err: fmt.Errorf("no audio data received")}
				return
			}
			if finalTranscription == "" {
				g.events <- entities.TranscriptError{Err: fmt.Errorf("no speech detected in audio")}
				return
			}
			g.events <- entities.FinalTranscript{Text: finalTranscription}
			return
		}
		if err != nil {
			g.events <- entities.TranscriptError{Err: fmt.Errorf("failed to receive response: %w", err)}
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			transcript := result.Alternatives[0].Transcript
			if result.IsFinal {
				finalTranscription = transcript
			} else {
				g.events <- entities.PartialTranscript{Text: transcript}
			}
		}
	}
}

// TranscribeAudio converts a complete recording to text in one streaming pass.
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	stream, err := g.InitTranscribeStreaming(ctx, config)
	if err != nil {
		return "", fmt.Errorf("failed to initialize streaming: %w", err)
	}

	if err := stream.Stream(audioData); err != nil {
		return "", fmt.Errorf("failed to stream audio data: %w", err)
	}
	if err := stream.Finish(); err != nil {
		return "", err
	}

	var final string
	for ev := range stream.Events() {
		switch e := ev.(type) {
		case entities.FinalTranscript:
			final = e.Text
		case entities.TranscriptError:
			return "", e.Err
		}
	}
	return final, nil
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
