package transcribe

import "context"

// Transcriber converts an uploaded audio file into text. Audio bytes are
// provider-opaque; format and size validation happen before enqueue.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
