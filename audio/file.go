/*
NAME
  file.go

DESCRIPTION
  file.go provides a file-backed Renderer for environments without an ALSA
  card: a WAV or FLAC fixture is decoded once into PCM and looped back to
  the transmit engine on demand. FLAC decoding reuses exp/flac/decode.go's
  parse-frames-into-a-WAV-encoder approach; the resulting WAV is then
  decoded to raw samples the same way a plain .wav fixture is.
*/

package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"

	"github.com/fieldradio/iwab/pcm"
)

// FileSource loops a decoded PCM fixture as a transmit.Renderer, useful for
// demos and CI where no sound card is attached.
type FileSource struct {
	spec pcm.Spec
	pcm  []byte
	pos  int
}

// OpenFileSource decodes path (a .wav or .flac file) to PCM matching spec
// and returns a looping FileSource. The fixture's channel count and sample
// rate must already match spec; OpenFileSource does not resample.
func OpenFileSource(path string, spec pcm.Spec) (*FileSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audio: reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		raw, err = flacToWAV(raw)
		if err != nil {
			return nil, fmt.Errorf("audio: decoding FLAC fixture %s: %w", path, err)
		}
	case ".wav":
		// already WAV
	default:
		return nil, fmt.Errorf("audio: unsupported fixture extension for %s, want .wav or .flac", path)
	}

	data, err := wavToPCM(raw, spec)
	if err != nil {
		return nil, fmt.Errorf("audio: decoding WAV fixture %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("audio: fixture %s decoded to zero PCM bytes", path)
	}
	return &FileSource{spec: spec, pcm: data}, nil
}

// Render implements transmit.Renderer, looping the decoded fixture.
func (f *FileSource) Render(maxBytes int) ([]byte, error) {
	fs := f.spec.FrameSize()
	maxBytes -= maxBytes % fs
	if maxBytes == 0 {
		return nil, nil
	}

	chunk := make([]byte, 0, maxBytes)
	for len(chunk) < maxBytes {
		if f.pos >= len(f.pcm) {
			f.pos = 0
		}
		n := maxBytes - len(chunk)
		if avail := len(f.pcm) - f.pos; avail < n {
			n = avail
		}
		chunk = append(chunk, f.pcm[f.pos:f.pos+n]...)
		f.pos += n
	}
	return chunk, nil
}

// writeSeeker is a minimal in-memory io.WriteSeeker, grounded on
// exp/flac/decode.go's implementation of the same need: the wav encoder
// requires Seek to patch its header after writing all frames.
type writeSeeker struct {
	buf []byte
	pos int
}

func (ws *writeSeeker) Write(p []byte) (int, error) {
	end := ws.pos + len(p)
	if end > len(ws.buf) {
		grown := make([]byte, end)
		copy(grown, ws.buf)
		ws.buf = grown
	}
	copy(ws.buf[ws.pos:end], p)
	ws.pos = end
	return len(p), nil
}

func (ws *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case io.SeekStart:
		newPos = int(offset)
	case io.SeekCurrent:
		newPos = ws.pos + int(offset)
	case io.SeekEnd:
		newPos = len(ws.buf) + int(offset)
	}
	if newPos < 0 {
		return 0, errors.New("audio: negative seek position")
	}
	ws.pos = newPos
	return int64(newPos), nil
}

const wavFormatPCM = 1

// flacToWAV decodes a FLAC byte stream into WAV bytes, following
// exp/flac/decode.go's frame-by-frame parse-and-encode loop.
func flacToWAV(raw []byte) ([]byte, error) {
	stream, err := flac.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing FLAC stream: %w", err)
	}

	ws := &writeSeeker{}
	sr := int(stream.Info.SampleRate)
	bps := int(stream.Info.BitsPerSample)
	nc := int(stream.Info.NChannels)
	enc := wav.NewEncoder(ws, sr, bps, nc, wavFormatPCM)

	intBuf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: nc, SampleRate: sr},
		SourceBitDepth: bps,
	}

	var samples []int
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			enc.Close()
			return nil, fmt.Errorf("parsing FLAC frame: %w", err)
		}
		samples = samples[:0]
		for i := 0; i < frame.Subframes[0].NSamples; i++ {
			for _, sub := range frame.Subframes {
				samples = append(samples, int(sub.Samples[i]))
			}
		}
		intBuf.Data = samples
		if err := enc.Write(intBuf); err != nil {
			enc.Close()
			return nil, fmt.Errorf("encoding WAV frame: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalising WAV header: %w", err)
	}
	return ws.buf, nil
}

// wavToPCM decodes WAV bytes to raw little-endian PCM matching spec,
// rejecting a fixture whose channel count or rate doesn't match.
func wavToPCM(raw []byte, spec pcm.Spec) ([]byte, error) {
	dec := wav.NewDecoder(bytes.NewReader(raw))
	if !dec.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM buffer: %w", err)
	}
	if buf.Format.NumChannels != int(spec.Channels) {
		return nil, fmt.Errorf("fixture has %d channels, want %d", buf.Format.NumChannels, spec.Channels)
	}
	if buf.Format.SampleRate != int(spec.Rate) {
		return nil, fmt.Errorf("fixture is %d Hz, want %d Hz", buf.Format.SampleRate, spec.Rate)
	}

	out := make([]byte, 0, len(buf.Data)*2)
	for _, s := range buf.Data {
		out = append(out, byte(s), byte(s>>8))
	}
	return out, nil
}
