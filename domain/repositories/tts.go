package repositories

import "context"

// TextToSpeech abstracts speech synthesis. The returned channel yields the
// synthesized audio as ordered chunks and is closed after the last one.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
}
