package audio

import "encoding/binary"

const (
	sampleRate      = 48000
	channels        = 2
	frameSizeMs     = 20
	samplesPerFrame = sampleRate * frameSizeMs * channels / 1000

	// One second of audio per speaker. Older frames are dropped first.
	maxQueuedFrames = 1000 / frameSizeMs
)

type frameQueue struct {
	frames [][]int16
}

func (q *frameQueue) push(frame []int16) {
	if len(q.frames) >= maxQueuedFrames {
		q.frames = q.frames[1:]
	}
	q.frames = append(q.frames, frame)
}

func (q *frameQueue) pop() ([]int16, bool) {
	if len(q.frames) == 0 {
		return nil, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

func (q *frameQueue) hasFrame() bool {
	return len(q.frames) > 0
}

func hasQueuedFrames(queues map[string]*frameQueue) bool {
	for _, q := range queues {
		if q.hasFrame() {
			return true
		}
	}
	return false
}

// mixQueuedFrames sums the oldest frame of every speaker into mixed.
func mixQueuedFrames(queues map[string]*frameQueue, mixed []int16) {
	for _, q := range queues {
		frame, ok := q.pop()
		if !ok {
			continue
		}
		for i := 0; i < len(frame) && i < len(mixed); i++ {
			mixed[i] = clampPCM(int32(mixed[i]) + int32(frame[i]))
		}
	}
}

func clampPCM(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// writeMixedPCM encodes mixed as little endian LINEAR16 into buf.
func writeMixedPCM(buf []byte, mixed []int16) int {
	toWrite := min(len(buf)/2, len(mixed))
	for i := range toWrite {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(mixed[i]))
	}
	return toWrite * 2
}
