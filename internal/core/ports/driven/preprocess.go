package driven

import "context"

// Captioner produces short textual descriptions of images. Caller-side
// failures degrade to empty captions rather than aborting ingestion of
// the owning document.
type Captioner interface {
	GenerateCaptions(ctx context.Context, images [][]byte) ([]string, error)
}

// Transcriber converts audio to text. Failures degrade to empty text
// rather than aborting ingestion of the owning document.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mime string) (string, error)
}
