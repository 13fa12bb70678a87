package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/audio"
	"github.com/foxseedlab/tsuyaku/internal/discord"
	"github.com/foxseedlab/tsuyaku/internal/repository"
	"github.com/foxseedlab/tsuyaku/internal/transcriber"
	"github.com/foxseedlab/tsuyaku/internal/transcript"
)

const (
	audioMixInterval = 20 * time.Millisecond
	audioFrameBytes  = 960 * 2 * 2
)

// VoiceDeps are the collaborators for capturing a Discord voice channel.
type VoiceDeps struct {
	Discord     discord.Client
	Transcriber transcriber.Transcriber
	NewMixer    audio.MixerFactory
}

// VoiceTarget is the voice channel to capture. Its text chat receives the
// start notice and the finished document.
type VoiceTarget struct {
	GuildID   string
	ChannelID string
}

type voiceCapture struct {
	target    VoiceTarget
	streamID  string
	conn      discord.VoiceConnection
	mixer     audio.Mixer
	writer    transcriber.StreamWriter
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (m *Manager) startVoiceCapture(gen uint64, target VoiceTarget, language string) (*voiceCapture, error) {
	deps := m.voiceDeps
	conn, err := deps.Discord.JoinVoiceChannel(target.GuildID, target.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}
	slog.Info("joined voice channel", "guild_id", target.GuildID, "channel_id", target.ChannelID)

	mixer := deps.NewMixer()
	streamID := fmt.Sprintf("%s-%d", target.ChannelID, gen)
	streamCtx, cancel := context.WithCancel(context.Background())
	receiver := &resultReceiver{manager: m, gen: gen, streamID: streamID}
	writer, err := deps.Transcriber.StartStreaming(streamCtx, streamID, language, receiver)
	if err != nil {
		cancel()
		mixer.Close()
		_ = conn.Disconnect()
		return nil, fmt.Errorf("failed to start transcriber streaming: %w", err)
	}
	slog.Info("transcriber streaming started", "stream_id", streamID, "language", language)

	vc := &voiceCapture{
		target:   target,
		streamID: streamID,
		conn:     conn,
		mixer:    mixer,
		writer:   writer,
		cancel:   cancel,
	}
	if err := deps.Discord.SendChannelMessage(target.ChannelID, startChannelMessage()); err != nil {
		slog.Warn("failed to post start notice", "error", err, "channel_id", target.ChannelID)
	}

	var receivedOpusPackets int64
	go conn.ReceiveAudio(func(userID string, opusPacket []byte) {
		n := atomic.AddInt64(&receivedOpusPackets, 1)
		if n == 1 || n%500 == 0 {
			slog.Debug("received opus packet", "stream_id", streamID, "user_id", userID, "packet_bytes", len(opusPacket), "total_packets", n)
		}
		mixer.WriteOpusPacket(userID, opusPacket)
	})
	go vc.streamMixedAudio(streamCtx, &receivedOpusPackets, func(err error) {
		if m.session.Live(gen) {
			m.HandleRecognitionError(context.Background(), err)
		}
	})
	return vc, nil
}

func (v *voiceCapture) close() {
	v.closeOnce.Do(func() {
		v.cancel()
		if err := v.writer.Close(); err != nil {
			slog.Warn("failed to close transcriber stream", "error", err, "stream_id", v.streamID)
		}
		v.mixer.Close()
		if err := v.conn.Disconnect(); err != nil {
			slog.Warn("failed to disconnect voice channel", "error", err, "channel_id", v.target.ChannelID)
		}
	})
}

func (v *voiceCapture) streamMixedAudio(ctx context.Context, receivedOpusPackets *int64, onWriteError func(error)) {
	ticker := time.NewTicker(audioMixInterval)
	statsTicker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	defer statsTicker.Stop()
	buf := make([]byte, audioFrameBytes)
	var (
		mixedFrames int64
		zeroFrames  int64
		writeFrames int64
	)
	for {
		select {
		case <-ctx.Done():
			slog.Info("audio mixer loop stopped",
				"stream_id", v.streamID,
				"received_opus_packets", atomic.LoadInt64(receivedOpusPackets),
				"mixed_frames", mixedFrames,
				"zero_frames", zeroFrames,
				"written_frames", writeFrames)
			return
		case <-statsTicker.C:
			slog.Debug("audio pipeline stats",
				"stream_id", v.streamID,
				"received_opus_packets", atomic.LoadInt64(receivedOpusPackets),
				"mixed_frames", mixedFrames,
				"zero_frames", zeroFrames,
				"written_frames", writeFrames)
		case <-ticker.C:
			n, err := v.mixer.ReadMixedPCM(buf)
			if err != nil {
				slog.Warn("failed to read mixed pcm", "error", err, "stream_id", v.streamID)
				continue
			}
			mixedFrames++
			if n == 0 {
				zeroFrames++
				continue
			}
			if err := v.writer.Write(buf[:n]); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("failed to write pcm to transcriber stream", "error", err, "stream_id", v.streamID, "pcm_bytes", n)
				onWriteError(err)
				return
			}
			writeFrames++
		}
	}
}

// postVoiceResult posts the finished document, or a note that nothing was
// transcribed, to the voice channel chat.
func (m *Manager) postVoiceResult(target VoiceTarget, doc *repository.Document) {
	dc := m.voiceDeps.Discord
	if doc == nil {
		if err := dc.SendChannelMessage(target.ChannelID, emptyStopChannelMessage()); err != nil {
			slog.Warn("failed to post stop notice", "error", err, "channel_id", target.ChannelID)
		}
		return
	}
	err := dc.SendChannelMessageWithFile(discord.FileMessage{
		ChannelID: target.ChannelID,
		Content:   stopChannelMessage(doc.Title),
		Filename:  documentFilename(*doc),
		FileBody:  []byte(m.library.Text(*doc)),
	})
	if err != nil {
		slog.Error("failed to post document to voice channel chat", "error", err, "channel_id", target.ChannelID, "document_id", doc.ID)
	}
}

func documentFilename(doc repository.Document) string {
	return fmt.Sprintf("note-%s.txt", doc.CreatedAt.Format("20060102-150405"))
}

type resultReceiver struct {
	manager  *Manager
	gen      uint64
	streamID string
}

func (r *resultReceiver) OnResults(results []transcriber.Result) {
	if !r.manager.session.Live(r.gen) {
		return
	}
	fragments := make([]transcript.Fragment, 0, len(results))
	for _, res := range results {
		fragments = append(fragments, transcript.Fragment{Text: res.Text, IsFinal: res.IsFinal})
	}
	if err := r.manager.HandleRecognition(fragments, r.manager.now()); err != nil && !errors.Is(err, ErrNotRecording) {
		slog.Warn("failed to apply recognition result", "error", err, "stream_id", r.streamID)
	}
}

func (r *resultReceiver) OnError(err error) {
	if errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "operation was cancelled") {
		slog.Info("transcriber stream canceled", "error", err, "stream_id", r.streamID)
		return
	}
	if !r.manager.session.Live(r.gen) {
		slog.Info("transcriber stream error after recording ended", "error", err, "stream_id", r.streamID)
		return
	}
	go r.manager.HandleRecognitionError(context.Background(), err)
}
