package audio

import (
	"bytes"
	"encoding/binary"
	"errors"

	"talkbox/internal/domain"
)

const wavHeaderSize = 44

// WAVEncoder wraps signed 16-bit little-endian PCM in a RIFF/WAVE container.
type WAVEncoder struct {
	SampleRate int
	Channels   int
}

func (e WAVEncoder) Encode(pcm []byte, seconds int) (domain.AudioClip, error) {
	sampleRate := e.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := e.Channels
	if channels <= 0 {
		channels = 1
	}
	if channels > 2 {
		return domain.AudioClip{}, errors.New("only mono or stereo audio is supported")
	}

	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	// A read may split the final frame.
	pcm = pcm[:len(pcm)-len(pcm)%blockAlign]
	if len(pcm) == 0 {
		return domain.AudioClip{}, errors.New("pcm data is empty")
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return domain.AudioClip{
		Data:     buf.Bytes(),
		MIMEType: "audio/wav",
		Seconds:  seconds,
	}, nil
}
