package export

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/project"
	"github.com/makeitchaccha/audiobook/audiobook/wavfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var format16k = wavfile.Format{SampleRate: 16000, NumChannels: 1, BitDepth: 16}

// newProject creates a project with one second of audio for every unit.
func newProject(t *testing.T, manuscript string) *project.Project {
	t.Helper()
	p, err := project.Create(filepath.Join(t.TempDir(), "book"), manuscript, project.CreateOptions{})
	require.NoError(t, err)
	for _, u := range p.Units() {
		writeAudio(t, p, u.Index, format16k)
	}
	return p
}

func writeAudio(t *testing.T, p *project.Project, i int, format wavfile.Format) {
	t.Helper()
	name := project.AudioFileName(i)
	require.NoError(t, wavfile.WriteSilence(p.Path(name), format, time.Second))
	require.NoError(t, p.MarkGenerated(i, name))
}

func wavComposer() *Composer {
	return NewComposer(WAVConcatenator{}, nil)
}

func TestExportPauses(t *testing.T) {
	p := newProject(t, "One.\nTwo.\nThree.\n")
	require.Equal(t, 0.5, p.Settings().PauseDuration)

	result, err := wavComposer().Export(context.Background(), p.Dir(), Options{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(p.Dir(), project.ExportDir, "book_audiobook_0.wav"), result.Path)
	assert.Equal(t, 3, result.Units)

	info, err := wavfile.Probe(result.Path)
	require.NoError(t, err)
	assert.Equal(t, format16k, info.Format)
	assert.InDelta(t, 4*16000, info.Frames, 1)
	assert.FileExists(t, p.Path(project.SilenceFile))
}

func TestExportManifestOrder(t *testing.T) {
	p := newProject(t, "One.\nTwo.\nThree.\n")
	silence := p.Path(project.SilenceFile)

	result, err := wavComposer().Export(context.Background(), p.Dir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		p.Path("audio_0.wav"), silence,
		p.Path("audio_1.wav"), silence,
		p.Path("audio_2.wav"),
	}, result.Manifest)
}

func TestExportPauseOverride(t *testing.T) {
	p := newProject(t, "One.\nTwo.\n")

	zero := time.Duration(0)
	result, err := wavComposer().Export(context.Background(), p.Dir(), Options{Pause: &zero})
	require.NoError(t, err)
	assert.Equal(t, []string{p.Path("audio_0.wav"), p.Path("audio_1.wav")}, result.Manifest)

	info, err := wavfile.Probe(result.Path)
	require.NoError(t, err)
	assert.Equal(t, 2*16000, info.Frames)

	negative := -time.Second
	_, err = wavComposer().Export(context.Background(), p.Dir(), Options{Pause: &negative})
	assert.ErrorIs(t, err, audiobook.ErrValidation)
}

func TestExportSkipsUnitsWithoutAudio(t *testing.T) {
	p, err := project.Create(filepath.Join(t.TempDir(), "book"), "One.\nTwo.\nThree.\n", project.CreateOptions{})
	require.NoError(t, err)
	writeAudio(t, p, 0, format16k)
	writeAudio(t, p, 2, format16k)

	result, err := wavComposer().Export(context.Background(), p.Dir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, result.Skipped)
	assert.Equal(t, 2, result.Units)
}

func TestExportSkipsStaleAudio(t *testing.T) {
	p := newProject(t, "One.\nTwo.\nThree.\n")
	require.NoError(t, p.UpdateSentence(1, "Two rewritten."))

	u, err := p.Unit(1)
	require.NoError(t, err)
	require.False(t, u.Generated)
	require.Equal(t, "audio_1.wav", u.AudioPath)

	result, err := wavComposer().Export(context.Background(), p.Dir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, result.Skipped)
	assert.Equal(t, 2, result.Units)
	assert.NotContains(t, result.Manifest, p.Path("audio_1.wav"))

	info, err := wavfile.Probe(result.Path)
	require.NoError(t, err)
	assert.InDelta(t, 2.5*16000, info.Frames, 1)
}

func TestExportIgnoresVanishedStaleAudio(t *testing.T) {
	p := newProject(t, "One.\nTwo.\n")
	require.NoError(t, p.UpdateSentence(0, "One rewritten."))
	require.NoError(t, os.Remove(p.Path("audio_0.wav")))

	result, err := wavComposer().Export(context.Background(), p.Dir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, result.Skipped)
	assert.Equal(t, []string{p.Path("audio_1.wav")}, result.Manifest)
}

func TestExportNothingToExport(t *testing.T) {
	p, err := project.Create(filepath.Join(t.TempDir(), "book"), "One.\n", project.CreateOptions{})
	require.NoError(t, err)

	_, err = wavComposer().Export(context.Background(), p.Dir(), Options{})
	assert.ErrorIs(t, err, audiobook.ErrExport)
}

func TestExportMissingFile(t *testing.T) {
	p := newProject(t, "One.\nTwo.\nThree.\n")
	require.NoError(t, os.Remove(p.Path("audio_1.wav")))

	_, err := wavComposer().Export(context.Background(), p.Dir(), Options{})
	assert.ErrorIs(t, err, audiobook.ErrExport)
	assert.NoDirExists(t, p.Path(project.ExportDir), "fails before producing output")
}

func TestExportUnreadableFile(t *testing.T) {
	p := newProject(t, "One.\nTwo.\n")
	require.NoError(t, os.WriteFile(p.Path("audio_1.wav"), []byte("not audio"), 0o644))

	_, err := wavComposer().Export(context.Background(), p.Dir(), Options{})
	assert.ErrorIs(t, err, audiobook.ErrExport)
	assert.ErrorIs(t, err, wavfile.ErrInvalidFile)
	assert.NoFileExists(t, p.Path(project.SilenceFile))
}

func TestExportFormatMismatch(t *testing.T) {
	p := newProject(t, "One.\nTwo.\n")
	writeAudio(t, p, 1, wavfile.Format{SampleRate: 22050, NumChannels: 1, BitDepth: 16})

	_, err := wavComposer().Export(context.Background(), p.Dir(), Options{})
	assert.ErrorIs(t, err, audiobook.ErrExport)
	assert.ErrorIs(t, err, wavfile.ErrFormatMismatch)
}

func TestExportNaming(t *testing.T) {
	p := newProject(t, "One.\n")
	composer := wavComposer()

	for k, name := range []string{"book_audiobook_0.wav", "book_audiobook_1.wav"} {
		result, err := composer.Export(context.Background(), p.Dir(), Options{})
		require.NoError(t, err, "export %d", k)
		assert.Equal(t, name, filepath.Base(result.Path))
	}

	require.NoError(t, os.Remove(filepath.Join(p.Dir(), project.ExportDir, "book_audiobook_0.wav")))
	result, err := composer.Export(context.Background(), p.Dir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "book_audiobook_0.wav", filepath.Base(result.Path), "smallest unused k")
}

func TestNewConcatenator(t *testing.T) {
	c, err := NewConcatenator("mp3", "/usr/bin/ffmpeg", "128k")
	require.NoError(t, err)
	assert.Equal(t, &FFmpegConcatenator{Path: "/usr/bin/ffmpeg", Bitrate: "128k"}, c)

	c, err = NewConcatenator("wav", "", "")
	require.NoError(t, err)
	assert.Equal(t, "wav", c.Ext())

	_, err = NewConcatenator("flac", "", "")
	assert.ErrorIs(t, err, audiobook.ErrConfig)
}

func TestConcatList(t *testing.T) {
	assert.Equal(t, "file '/a/audio_0.wav'\nfile '/a/it'\\''s.wav'\n", concatList([]string{"/a/audio_0.wav", "/a/it's.wav"}))
}

func TestFFmpegFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a posix shell")
	}
	p := newProject(t, "One.\n")

	_, err := NewComposer(&FFmpegConcatenator{Path: "false"}, nil).Export(context.Background(), p.Dir(), Options{})
	assert.ErrorIs(t, err, audiobook.ErrExport)

	entries, err := os.ReadDir(p.Path(project.ExportDir))
	require.NoError(t, err)
	assert.Empty(t, entries, "no output or list file left behind")
}
