// Package wav encodes and decodes mono 16-bit PCM WAV files for the
// processing service's file path. It handles exactly the subset the service
// produces and accepts (RIFF/WAVE, one channel, 16-bit linear PCM) and
// rejects everything else with a descriptive error.
//
// Float samples are clipped to [-1, 1] at encode time; this is the only
// place in the pipeline where clipping happens.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Decode errors.
var (
	// ErrNotWAV is returned when the stream is not a RIFF/WAVE container.
	ErrNotWAV = errors.New("not a RIFF/WAVE stream")

	// ErrUnsupportedFormat is returned for WAV files that are not mono
	// 16-bit linear PCM.
	ErrUnsupportedFormat = errors.New("unsupported WAV format (need mono 16-bit PCM)")
)

const (
	headerSize    = 44 // canonical RIFF + fmt + data header layout
	pcmFormatCode = 1  // linear PCM
)

// clip limits v to [-1, 1].
func clip(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}

// Encode writes signal as a mono 16-bit PCM WAV stream at the given sample
// rate. Samples outside [-1, 1] are clipped.
func Encode(w io.Writer, signal []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataLen := len(signal) * 2
	header := make([]byte, headerSize)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], pcmFormatCode)
	binary.LittleEndian.PutUint16(header[22:24], 1) // channels
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(header[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(header[34:36], 16)                   // bits per sample

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write WAV header: %w", err)
	}

	pcm := make([]byte, dataLen)
	for i, s := range signal {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(clip(s)*32767)))
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write WAV samples: %w", err)
	}
	return nil
}

// Decode reads a mono 16-bit PCM WAV stream and returns the samples scaled
// to [-1, 1] and the sample rate.
func Decode(r io.Reader) ([]float32, int, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, 0, fmt.Errorf("read RIFF header: %w", err)
	}
	if !bytes.Equal(riff[0:4], []byte("RIFF")) || !bytes.Equal(riff[8:12], []byte("WAVE")) {
		return nil, 0, ErrNotWAV
	}

	var (
		sampleRate int
		haveFmt    bool
	)

	// Walk chunks until the data chunk; tolerate extra chunks (LIST, fact)
	// the way most encoders emit them.
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, 0, fmt.Errorf("no data chunk: %w", ErrNotWAV)
			}
			return nil, 0, fmt.Errorf("read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkLen := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, 0, ErrUnsupportedFormat
			}
			fmtChunk := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, fmtChunk); err != nil {
				return nil, 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			formatCode := binary.LittleEndian.Uint16(fmtChunk[0:2])
			channels := binary.LittleEndian.Uint16(fmtChunk[2:4])
			bits := binary.LittleEndian.Uint16(fmtChunk[14:16])
			if formatCode != pcmFormatCode || channels != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("%w: format=%d channels=%d bits=%d",
					ErrUnsupportedFormat, formatCode, channels, bits)
			}
			sampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("data chunk before fmt chunk: %w", ErrNotWAV)
			}
			pcm := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return nil, 0, fmt.Errorf("read PCM data: %w", err)
			}
			signal := make([]float32, len(pcm)/2)
			for i := range signal {
				v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
				signal[i] = float32(v) / 32768.0
			}
			return signal, sampleRate, nil

		default:
			// Skip unknown chunk (padded to even length per RIFF).
			skip := int64(chunkLen)
			if chunkLen%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, 0, fmt.Errorf("skip %q chunk: %w", chunkID, err)
			}
		}
	}
}
