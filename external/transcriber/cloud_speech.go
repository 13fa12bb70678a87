package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/tsuyaku/internal/transcriber"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	speechAPIScope        = "https://www.googleapis.com/auth/cloud-platform"
	globalLocation        = "global"

	// Mixed voice channel audio: 48 kHz stereo LINEAR16.
	audioSampleRateHertz = 48000
	audioChannelCount    = 2
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	// Language is used when a stream is started without one.
	Language string
	Location string
	Model    string
}

// CloudSpeechTranscriber recognizes voice channel audio with Cloud Speech-to-Text v2.
// Each note gets its own gRPC client; the stream is reopened when Google ends it.
type CloudSpeechTranscriber struct {
	cfg CloudSpeechConfig
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) transcriber.Transcriber {
	cfg.Location = strings.TrimSpace(cfg.Location)
	if cfg.Location == "" {
		cfg.Location = globalLocation
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	return &CloudSpeechTranscriber{cfg: cfg}
}

func (t *CloudSpeechTranscriber) StartStreaming(ctx context.Context, streamID, lang string, receiver transcriber.ResultReceiver) (transcriber.StreamWriter, error) {
	lang = recognitionLanguage(lang, t.cfg.Language)
	slog.Info("starting cloud speech stream", "stream_id", streamID, "location", t.cfg.Location, "language", lang, "model", t.cfg.Model)

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(t.cfg.CredentialsJSON),
		Scopes:          []string{speechAPIScope},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	opts := []option.ClientOption{option.WithAuthCredentials(creds)}
	if endpoint := speechEndpoint(t.cfg.Location); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	configReq := streamingConfigRequest(recognizerName(t.cfg.ProjectID, t.cfg.Location), t.cfg.Model, lang)
	open := func() (speechpb.Speech_StreamingRecognizeClient, error) {
		stream, err := client.StreamingRecognize(ctx)
		if err != nil {
			return nil, fmt.Errorf("open stream: %w", err)
		}
		if err := stream.Send(configReq); err != nil {
			_ = stream.CloseSend()
			return nil, fmt.Errorf("send streaming config: %w", err)
		}
		return stream, nil
	}

	stream, err := open()
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	slog.Info("cloud speech stream ready", "stream_id", streamID)

	w := &streamWriter{
		streamID: streamID,
		stream:   stream,
		receiver: receiver,
		reopen:   open,
		closeFn:  client.Close,
	}
	go receiveResults(streamID, stream, receiver)
	return w, nil
}

// recognitionLanguage canonicalizes a BCP 47 tag for the recognizer, falling back
// to the configured default when none was chosen.
func recognitionLanguage(code, fallback string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		code = strings.TrimSpace(fallback)
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

func speechEndpoint(location string) string {
	if location == globalLocation {
		return ""
	}
	return fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)
}

func recognizerName(projectID, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", projectID, location)
}

// streamingConfigRequest is the first message of every stream. Interim results
// feed the live view; punctuation gives the translator sentence boundaries.
func streamingConfigRequest(recognizer, model, lang string) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         model,
					LanguageCodes: []string{lang},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   audioSampleRateHertz,
							AudioChannelCount: audioChannelCount,
						},
					},
					Features: &speechpb.RecognitionFeatures{
						EnableAutomaticPunctuation: true,
					},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: true},
			},
		},
	}
}

type streamWriter struct {
	streamID string
	receiver transcriber.ResultReceiver
	reopen   func() (speechpb.Speech_StreamingRecognizeClient, error)
	closeFn  func() error

	mu     sync.Mutex
	closed bool
	stream speechpb.Speech_StreamingRecognizeClient
}

func (w *streamWriter) Write(pcm []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return io.ErrClosedPipe
	}
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: pcm},
	}
	err := w.stream.Send(req)
	if err == nil || !isReconnectableStreamError(err) {
		return err
	}

	slog.Warn("cloud speech stream ended by server; reopening", "stream_id", w.streamID, "error", err)
	_ = w.stream.CloseSend()
	next, err := w.reopen()
	if err != nil {
		return fmt.Errorf("reopen stream: %w", err)
	}
	w.stream = next
	go receiveResults(w.streamID, next, w.receiver)
	return w.stream.Send(req)
}

func (w *streamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	sendErr := w.stream.CloseSend()
	closeErr := w.closeFn()
	return errors.Join(sendErr, closeErr)
}

type resultStream interface {
	Recv() (*speechpb.StreamingRecognizeResponse, error)
}

// receiveResults forwards recognition results until the stream ends. Errors that
// end a note are reported; a normal close or a server-side rotation is not.
func receiveResults(streamID string, stream resultStream, receiver transcriber.ResultReceiver) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			switch {
			case isStreamClosed(err):
				slog.Debug("cloud speech receive loop stopped", "stream_id", streamID, "reason", err.Error())
			case isReconnectableStreamError(err):
				slog.Info("cloud speech stream rotated by server", "stream_id", streamID)
			default:
				receiver.OnError(err)
			}
			return
		}
		if results := toResults(resp.GetResults()); len(results) > 0 {
			receiver.OnResults(results)
		}
	}
}

func isStreamClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return true
	}
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Canceled
}

// isReconnectableStreamError matches the limits Cloud Speech enforces on a single
// stream: five minutes of audio and an idle timeout.
func isReconnectableStreamError(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}

// toResults keeps the top alternative of each result. Results without text carry
// nothing for the transcript and are dropped.
func toResults(in []*speechpb.StreamingRecognitionResult) []transcriber.Result {
	out := make([]transcriber.Result, 0, len(in))
	for _, r := range in {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		text := strings.TrimSpace(alts[0].GetTranscript())
		if text == "" {
			continue
		}
		out = append(out, transcriber.Result{Text: text, IsFinal: r.GetIsFinal()})
	}
	return out
}
