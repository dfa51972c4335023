package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// HeaderSize is the fixed size of the RIFF/WAVE header this package writes.
const HeaderSize = 44

// EncodeWAV wraps raw little-endian 16-bit mono PCM bytes in a WAV
// container: a 44-byte header followed by the samples verbatim. The layout
// is deterministic; identical inputs yield byte-identical output.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
		pcmFormat     = 1
	)

	out := make([]byte, HeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], pcmFormat)
	le.PutUint16(out[22:24], numChannels)
	le.PutUint32(out[24:28], uint32(sampleRate))
	le.PutUint32(out[28:32], uint32(sampleRate*numChannels*bitsPerSample/8))
	le.PutUint16(out[32:34], numChannels*bitsPerSample/8)
	le.PutUint16(out[34:36], bitsPerSample)

	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}

// WriteWAV writes the encoded container to out.
func WriteWAV(out io.Writer, pcm []byte, sampleRate int) error {
	_, err := out.Write(EncodeWAV(pcm, sampleRate))
	return err
}

// Format describes a parsed WAV header.
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int
}

var ErrNotWAV = errors.New("not a PCM WAV container")

// ProbeWAV parses the fixed header produced by EncodeWAV. It accepts any
// standard uncompressed container with a 16-byte fmt chunk followed
// directly by the data chunk.
func ProbeWAV(b []byte) (Format, error) {
	if len(b) < HeaderSize {
		return Format{}, ErrNotWAV
	}
	le := binary.LittleEndian
	if !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		return Format{}, ErrNotWAV
	}
	if !bytes.Equal(b[12:16], []byte("fmt ")) || le.Uint32(b[16:20]) != 16 {
		return Format{}, ErrNotWAV
	}
	if le.Uint16(b[20:22]) != 1 {
		return Format{}, ErrNotWAV
	}
	if !bytes.Equal(b[36:40], []byte("data")) {
		return Format{}, ErrNotWAV
	}
	return Format{
		Channels:      int(le.Uint16(b[22:24])),
		SampleRate:    int(le.Uint32(b[24:28])),
		BitsPerSample: int(le.Uint16(b[34:36])),
		DataSize:      int(le.Uint32(b[40:44])),
	}, nil
}
