// Package wavfile probes, synthesizes and concatenates PCM WAV files.
package wavfile

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrInvalidFile    = errors.New("not a valid wav file")
	ErrFormatMismatch = errors.New("wav formats differ")
)

// Format describes the PCM layout of a file.
type Format struct {
	SampleRate  int
	NumChannels int
	BitDepth    int
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %d bit", f.SampleRate, f.NumChannels, f.BitDepth)
}

func (f Format) valid() bool {
	return f.SampleRate > 0 && f.NumChannels > 0 && f.BitDepth > 0
}

type Info struct {
	Format
	Frames int
}

func (i Info) Duration() time.Duration {
	if i.SampleRate == 0 {
		return 0
	}
	return time.Duration(i.Frames) * time.Second / time.Duration(i.SampleRate)
}

// Probe reads the header and counts the frames of the file at path.
func Probe(path string) (Info, error) {
	buf, format, err := read(path)
	if err != nil {
		return Info{}, err
	}
	return Info{Format: format, Frames: len(buf.Data) / format.NumChannels}, nil
}

func read(path string) (*audio.IntBuffer, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Format{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, Format{}, fmt.Errorf("%s: %w", path, ErrInvalidFile)
	}
	format := Format{
		SampleRate:  int(d.SampleRate),
		NumChannels: int(d.NumChans),
		BitDepth:    int(d.BitDepth),
	}
	if !format.valid() {
		return nil, Format{}, fmt.Errorf("%s: %w", path, ErrInvalidFile)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to read pcm data of %s: %w", path, err)
	}
	return buf, format, nil
}

// FramesFor returns the frame count of d at sampleRate, rounded to the nearest frame.
func FramesFor(d time.Duration, sampleRate int) int {
	return int((d*time.Duration(sampleRate) + time.Second/2) / time.Second)
}

// Silence returns a zeroed buffer of duration d in format.
func Silence(format Format, d time.Duration) *audio.IntBuffer {
	frames := max(FramesFor(d, format.SampleRate), 0)
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: format.NumChannels,
			SampleRate:  format.SampleRate,
		},
		Data:           make([]int, frames*format.NumChannels),
		SourceBitDepth: format.BitDepth,
	}
}

// WriteSilence writes a silent file of duration d.
func WriteSilence(path string, format Format, d time.Duration) error {
	if !format.valid() {
		return fmt.Errorf("invalid format %s", format)
	}
	return write(path, format, func(e *wav.Encoder) error {
		return e.Write(Silence(format, d))
	})
}

// Concat writes the PCM data of every input, in order, to out. All inputs
// must share the format of the first one.
func Concat(out string, inputs []string) (Info, error) {
	if len(inputs) == 0 {
		return Info{}, errors.New("no inputs to concatenate")
	}

	_, first, err := read(inputs[0])
	if err != nil {
		return Info{}, err
	}

	frames := 0
	err = write(out, first, func(e *wav.Encoder) error {
		for _, in := range inputs {
			buf, format, err := read(in)
			if err != nil {
				return err
			}
			if format != first {
				return fmt.Errorf("%s is %s, expected %s: %w", in, format, first, ErrFormatMismatch)
			}
			if err := e.Write(buf); err != nil {
				return fmt.Errorf("failed to write %s: %w", in, err)
			}
			frames += len(buf.Data) / format.NumChannels
		}
		return nil
	})
	if err != nil {
		return Info{}, err
	}
	return Info{Format: first, Frames: frames}, nil
}

func write(path string, format Format, fn func(e *wav.Encoder) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	e := wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.NumChannels, 1)
	if err := fn(e); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := e.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return f.Close()
}
