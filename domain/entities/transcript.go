package entities

// TranscriptEvent is the closed set of outcomes a streaming transcription can
// produce. Any number of PartialTranscript events may precede exactly one
// FinalTranscript or one TranscriptError; each partial supersedes the prior
// one for display, it is never appended.
type TranscriptEvent interface {
	transcriptEvent()
}

// PartialTranscript is a provisional, superseding best-effort result.
type PartialTranscript struct {
	Text string
}

// FinalTranscript completes the transcription phase of a turn.
type FinalTranscript struct {
	Text string
}

// TranscriptError terminates the transcription phase with a failure.
type TranscriptError struct {
	Err error
}

func (PartialTranscript) transcriptEvent() {}
func (FinalTranscript) transcriptEvent()   {}
func (TranscriptError) transcriptEvent()   {}
