//go:build noopus

package audio

import "github.com/foxseedlab/tsuyaku/internal/audio"

// noopMixer is used for builds without libopus. Voice capture then produces silence.
type noopMixer struct{}

func NewOpusMixer() audio.Mixer {
	return &noopMixer{}
}

func (m *noopMixer) WriteOpusPacket(_ string, _ []byte) {}

func (m *noopMixer) ReadMixedPCM(_ []byte) (int, error) {
	return 0, nil
}

func (m *noopMixer) Close() {}
