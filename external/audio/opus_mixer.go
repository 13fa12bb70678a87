//go:build !noopus

package audio

import (
	"log/slog"
	"sync"

	"github.com/foxseedlab/tsuyaku/internal/audio"
	"github.com/hraban/opus"
)

// OpusMixer decodes per-speaker opus packets and mixes them into one 48kHz
// stereo stream.
type OpusMixer struct {
	mu       sync.Mutex
	decoders map[string]*opus.Decoder
	queues   map[string]*frameQueue
	closed   bool
}

func NewOpusMixer() audio.Mixer {
	return &OpusMixer{
		decoders: make(map[string]*opus.Decoder),
		queues:   make(map[string]*frameQueue),
	}
}

func (m *OpusMixer) WriteOpusPacket(userID string, opusData []byte) {
	if len(opusData) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	dec, ok := m.decoders[userID]
	if !ok {
		var err error
		dec, err = opus.NewDecoder(sampleRate, channels)
		if err != nil {
			slog.Warn("failed to create opus decoder", "user_id", userID, "error", err)
			return
		}
		m.decoders[userID] = dec
		m.queues[userID] = &frameQueue{}
	}
	pcm := make([]int16, samplesPerFrame)
	n, err := dec.Decode(opusData, pcm)
	if err != nil || n <= 0 {
		return
	}
	total := min(n*channels, samplesPerFrame)
	frame := make([]int16, total)
	copy(frame, pcm[:total])
	m.queues[userID].push(frame)
}

func (m *OpusMixer) ReadMixedPCM(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !hasQueuedFrames(m.queues) {
		return 0, nil
	}
	mixed := make([]int16, samplesPerFrame)
	mixQueuedFrames(m.queues, mixed)
	return writeMixedPCM(buf, mixed), nil
}

func (m *OpusMixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.decoders = nil
	m.queues = nil
}
