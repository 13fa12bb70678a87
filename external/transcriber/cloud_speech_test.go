package transcriber

import (
	"errors"
	"io"
	"sync"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/tsuyaku/internal/transcriber"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func result(isFinal bool, transcripts ...string) *speechpb.StreamingRecognitionResult {
	alts := make([]*speechpb.SpeechRecognitionAlternative, 0, len(transcripts))
	for _, tr := range transcripts {
		alts = append(alts, &speechpb.SpeechRecognitionAlternative{Transcript: tr})
	}
	return &speechpb.StreamingRecognitionResult{Alternatives: alts, IsFinal: isFinal}
}

func TestToResults(t *testing.T) {
	tests := []struct {
		name string
		in   []*speechpb.StreamingRecognitionResult
		want []transcriber.Result
	}{
		{name: "no results", in: nil, want: []transcriber.Result{}},
		{
			name: "empty alternatives are skipped",
			in:   []*speechpb.StreamingRecognitionResult{result(true), result(false, "hello")},
			want: []transcriber.Result{{Text: "hello", IsFinal: false}},
		},
		{
			name: "mixed final and interim keep arrival order",
			in: []*speechpb.StreamingRecognitionResult{
				result(true, " Good morning. "),
				result(false, "how are"),
			},
			want: []transcriber.Result{
				{Text: "Good morning.", IsFinal: true},
				{Text: "how are", IsFinal: false},
			},
		},
		{
			name: "only the top alternative is used",
			in:   []*speechpb.StreamingRecognitionResult{result(true, "I scream.", "Ice cream.")},
			want: []transcriber.Result{{Text: "I scream.", IsFinal: true}},
		},
		{
			name: "blank transcripts are dropped",
			in:   []*speechpb.StreamingRecognitionResult{result(true, "  "), result(false, "")},
			want: []transcriber.Result{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toResults(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d results, got %+v", len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("result %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

type fakeResultStream struct {
	responses []*speechpb.StreamingRecognizeResponse
	err       error
}

func (s *fakeResultStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	if len(s.responses) == 0 {
		return nil, s.err
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

type recordingReceiver struct {
	mu      sync.Mutex
	batches [][]transcriber.Result
	errs    []error
}

func (r *recordingReceiver) OnResults(results []transcriber.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, results)
}

func (r *recordingReceiver) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func TestReceiveResults_ForwardsInterimThenFinal(t *testing.T) {
	stream := &fakeResultStream{
		responses: []*speechpb.StreamingRecognizeResponse{
			{Results: []*speechpb.StreamingRecognitionResult{result(false, "Hello")}},
			{},
			{Results: []*speechpb.StreamingRecognitionResult{result(true, "Hello world.")}},
		},
		err: io.EOF,
	}
	rec := &recordingReceiver{}

	receiveResults("vc-1-1", stream, rec)

	if len(rec.batches) != 2 {
		t.Fatalf("expected responses without results to be skipped, got %+v", rec.batches)
	}
	if rec.batches[0][0] != (transcriber.Result{Text: "Hello"}) {
		t.Fatalf("unexpected interim batch: %+v", rec.batches[0])
	}
	if rec.batches[1][0] != (transcriber.Result{Text: "Hello world.", IsFinal: true}) {
		t.Fatalf("unexpected final batch: %+v", rec.batches[1])
	}
	if len(rec.errs) != 0 {
		t.Fatalf("end of stream must not be reported, got %v", rec.errs)
	}
}

func TestReceiveResults_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		reported bool
	}{
		{name: "eof", err: io.EOF},
		{name: "cancelled note", err: status.Error(codes.Canceled, "context canceled")},
		{name: "server rotation", err: status.Error(codes.Aborted, "Max duration of 5 minutes reached for stream.")},
		{name: "permission denied", err: status.Error(codes.PermissionDenied, "speech api disabled"), reported: true},
		{name: "other abort", err: status.Error(codes.Aborted, "recognizer busy"), reported: true},
		{name: "plain error", err: errors.New("boom"), reported: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingReceiver{}
			receiveResults("vc-1-1", &fakeResultStream{err: tt.err}, rec)
			if got := len(rec.errs) == 1; got != tt.reported {
				t.Fatalf("expected reported=%v, got errors %v", tt.reported, rec.errs)
			}
		})
	}
}

func TestIsReconnectableStreamError(t *testing.T) {
	if !isReconnectableStreamError(io.EOF) {
		t.Fatal("expected EOF on send to reopen the stream")
	}
	if !isReconnectableStreamError(status.Error(codes.Aborted, "Stream timed out after receiving no more client requests.")) {
		t.Fatal("expected idle timeout to reopen the stream")
	}
	if isReconnectableStreamError(status.Error(codes.InvalidArgument, "bad language")) {
		t.Fatal("invalid argument must not reopen the stream")
	}
}

func TestStreamingConfigRequest(t *testing.T) {
	req := streamingConfigRequest(recognizerName("proj", "asia-northeast1"), "chirp_3", "ja-JP")

	if got := req.GetRecognizer(); got != "projects/proj/locations/asia-northeast1/recognizers/_" {
		t.Fatalf("unexpected recognizer: %q", got)
	}
	cfg := req.GetStreamingConfig()
	if !cfg.GetStreamingFeatures().GetInterimResults() {
		t.Fatal("interim results must be enabled for the live view")
	}
	rc := cfg.GetConfig()
	if rc.GetModel() != "chirp_3" || len(rc.GetLanguageCodes()) != 1 || rc.GetLanguageCodes()[0] != "ja-JP" {
		t.Fatalf("unexpected recognition config: %+v", rc)
	}
	if !rc.GetFeatures().GetEnableAutomaticPunctuation() {
		t.Fatal("expected automatic punctuation")
	}
	dec := rc.GetExplicitDecodingConfig()
	if dec.GetSampleRateHertz() != audioSampleRateHertz || dec.GetAudioChannelCount() != audioChannelCount {
		t.Fatalf("unexpected decoding config: %+v", dec)
	}
}

func TestSpeechEndpoint(t *testing.T) {
	if got := speechEndpoint("global"); got != "" {
		t.Fatalf("global location must use the default endpoint, got %q", got)
	}
	if got := speechEndpoint("asia-northeast1"); got != "asia-northeast1-speech.googleapis.com:443" {
		t.Fatalf("unexpected regional endpoint: %q", got)
	}
}

func TestRecognitionLanguage(t *testing.T) {
	tests := []struct {
		code, fallback, want string
	}{
		{code: "en-us", want: "en-US"},
		{code: " ja-JP ", want: "ja-JP"},
		{code: "", fallback: "en-US", want: "en-US"},
		{code: "!!", want: "!!"},
	}
	for _, tt := range tests {
		if got := recognitionLanguage(tt.code, tt.fallback); got != tt.want {
			t.Fatalf("recognitionLanguage(%q, %q) = %q, want %q", tt.code, tt.fallback, got, tt.want)
		}
	}
}
