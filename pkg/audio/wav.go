package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header written by
// EncodeWAV.
const WAVHeaderSize = 44

// ErrNotWAV is returned by ParseWAVHeader for data that is not a PCM WAV file.
var ErrNotWAV = errors.New("audio: not a 16-bit PCM wav file")

type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// EncodeWAV wraps interleaved 16-bit samples in a WAV container.
func EncodeWAV(samples []int16, f Format) []byte {
	dataSize := uint32(len(samples) * 2)
	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      uint16(f.Channels()),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.SampleRate * f.FrameBytes()),
		BlockAlign:    uint16(f.FrameBytes()),
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}
	buf := make([]byte, 0, WAVHeaderSize+int(dataSize))
	buf = h.append(buf)
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
	}
	return buf
}

// append writes the header in its on-disk little-endian layout.
func (h *wavHeader) append(b []byte) []byte {
	le := binary.LittleEndian
	b = append(b, h.RIFF[:]...)
	b = le.AppendUint32(b, h.ChunkSize)
	b = append(b, h.WAVE[:]...)
	b = append(b, h.Fmt[:]...)
	b = le.AppendUint32(b, h.FmtSize)
	b = le.AppendUint16(b, h.AudioFormat)
	b = le.AppendUint16(b, h.Channels)
	b = le.AppendUint32(b, h.SampleRate)
	b = le.AppendUint32(b, h.ByteRate)
	b = le.AppendUint16(b, h.BlockAlign)
	b = le.AppendUint16(b, h.BitsPerSample)
	b = append(b, h.Data[:]...)
	return le.AppendUint32(b, h.DataSize)
}

// WAVInfo summarizes a WAV file produced by EncodeWAV.
type WAVInfo struct {
	Format  Format
	Samples int // frames per channel
}

// ParseWAVHeader reads the canonical header of a WAV file.
func ParseWAVHeader(data []byte) (WAVInfo, error) {
	var h wavHeader
	if len(data) < WAVHeaderSize {
		return WAVInfo{}, ErrNotWAV
	}
	if err := binary.Read(bytes.NewReader(data[:WAVHeaderSize]), binary.LittleEndian, &h); err != nil {
		return WAVInfo{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(h.RIFF[:]) != "RIFF" || string(h.WAVE[:]) != "WAVE" || h.AudioFormat != 1 || h.BitsPerSample != 16 {
		return WAVInfo{}, ErrNotWAV
	}
	if h.Channels != 1 && h.Channels != 2 {
		return WAVInfo{}, fmt.Errorf("%w: %d channels", ErrNotWAV, h.Channels)
	}
	f := Format{SampleRate: int(h.SampleRate), Stereo: h.Channels == 2}
	return WAVInfo{Format: f, Samples: int(h.DataSize) / f.FrameBytes()}, nil
}
