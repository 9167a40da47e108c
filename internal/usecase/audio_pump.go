package usecase

import (
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"

	"talkbox/internal/domain"
	"talkbox/internal/ports"
)

var errNoAudio = errors.New("no audio captured")

func pumpAudioChunks(
	audio ports.AudioSession,
	chunks *chunkBuffer,
	chunkSize int,
	logger zerolog.Logger,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			chunks.Add(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.Warn().Err(err).Msg("audio capture ended with error")
			}
			return
		}
	}
}

type clipAssembler struct {
	encoder ports.ClipEncoder
}

func (a clipAssembler) Assemble(chunks *chunkBuffer, seconds int) (domain.AudioClip, error) {
	pcm := chunks.Take()
	if len(pcm) == 0 {
		return domain.AudioClip{}, errNoAudio
	}
	return a.encoder.Encode(pcm, seconds)
}
