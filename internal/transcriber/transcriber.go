package transcriber

import "context"

type StreamWriter interface {
	Write(pcm []byte) error
	Close() error
}

// Result is one recognition hypothesis. Interim results for the same utterance
// replace each other until a final one arrives.
type Result struct {
	Text    string
	IsFinal bool
}

type ResultReceiver interface {
	OnResults(results []Result)
	OnError(err error)
}

type Transcriber interface {
	StartStreaming(ctx context.Context, streamID, language string, receiver ResultReceiver) (StreamWriter, error)
}
