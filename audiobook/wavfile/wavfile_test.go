package wavfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mono16k = Format{SampleRate: 16000, NumChannels: 1, BitDepth: 16}

func TestWriteSilenceAndProbe(t *testing.T) {
	type testCase struct {
		name     string
		format   Format
		duration time.Duration
		frames   int
	}

	testCases := []testCase{
		{name: "One second mono", format: mono16k, duration: time.Second, frames: 16000},
		{name: "Half second stereo", format: Format{SampleRate: 44100, NumChannels: 2, BitDepth: 16}, duration: 500 * time.Millisecond, frames: 22050},
		{name: "24 bit", format: Format{SampleRate: 48000, NumChannels: 1, BitDepth: 24}, duration: 10 * time.Millisecond, frames: 480},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "silence.wav")
			require.NoError(t, WriteSilence(path, tc.format, tc.duration))

			info, err := Probe(path)
			require.NoError(t, err)
			assert.Equal(t, tc.format, info.Format)
			assert.Equal(t, tc.frames, info.Frames)
			assert.Equal(t, tc.duration, info.Duration())
		})
	}
}

func TestWriteSilenceInvalidFormat(t *testing.T) {
	err := WriteSilence(filepath.Join(t.TempDir(), "x.wav"), Format{}, time.Second)
	assert.Error(t, err)
}

func TestProbeInvalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Probe(filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a riff file"), 0o644))
	_, err = Probe(garbage)
	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestConcat(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	require.NoError(t, WriteSilence(a, mono16k, time.Second))
	require.NoError(t, WriteSilence(b, mono16k, 500*time.Millisecond))

	out := filepath.Join(dir, "out.wav")
	info, err := Concat(out, []string{a, b, a})
	require.NoError(t, err)
	assert.Equal(t, 40000, info.Frames)

	probed, err := Probe(out)
	require.NoError(t, err)
	assert.Equal(t, info, probed)
	assert.Equal(t, 2500*time.Millisecond, probed.Duration())
}

func TestConcatFormatMismatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	require.NoError(t, WriteSilence(a, mono16k, time.Second))
	require.NoError(t, WriteSilence(b, Format{SampleRate: 22050, NumChannels: 1, BitDepth: 16}, time.Second))

	out := filepath.Join(dir, "out.wav")
	_, err := Concat(out, []string{a, b})
	assert.ErrorIs(t, err, ErrFormatMismatch)
	assert.NoFileExists(t, out)

	_, err = Concat(out, nil)
	assert.Error(t, err)
}

func TestFramesFor(t *testing.T) {
	assert.Equal(t, 8000, FramesFor(500*time.Millisecond, 16000))
	assert.Equal(t, 0, FramesFor(0, 16000))
	assert.Equal(t, 1, FramesFor(time.Second/16000, 16000))
}
