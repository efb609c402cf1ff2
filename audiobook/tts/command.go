package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
)

const CommandEngineName = "command"

var (
	_ Engine         = (*CommandEngine)(nil)
	_ VoiceConverter = (*CommandEngine)(nil)
)

// CommandParams configure an external synthesizer such as espeak-ng, piper,
// edge-tts or a voice conversion CLI. Args may contain the placeholders
// {text}, {in} and {out}. Without a {text} placeholder the text is written to
// the program's standard input.
type CommandParams struct {
	Program string   `mapstructure:"program"`
	Args    []string `mapstructure:"args"`
}

// CommandEngine runs one process per request. It serves both families.
type CommandEngine struct {
	params CommandParams
}

func NewCommandEngine(params CommandParams) (*CommandEngine, error) {
	if params.Program == "" {
		return nil, errors.New("command engine needs a program")
	}
	return &CommandEngine{params: params}, nil
}

func decodeCommandParams(settings speaker.Settings) (CommandParams, error) {
	var params CommandParams
	if err := decodeParams(settings, &params); err != nil {
		return params, err
	}
	return params, nil
}

func CommandFactory(_ context.Context, settings speaker.Settings) (Engine, error) {
	params, err := decodeCommandParams(settings)
	if err != nil {
		return nil, err
	}
	return NewCommandEngine(params)
}

func CommandConverterFactory(_ context.Context, settings speaker.Settings) (VoiceConverter, error) {
	params, err := decodeCommandParams(settings)
	if err != nil {
		return nil, err
	}
	return NewCommandEngine(params)
}

func (c *CommandEngine) Name() string {
	return CommandEngineName
}

func (c *CommandEngine) GenerateSpeech(ctx context.Context, request SpeechRequest) error {
	return c.run(ctx, request.Text, "", request.OutPath)
}

func (c *CommandEngine) ConvertVoice(ctx context.Context, request ConversionRequest) error {
	return c.run(ctx, "", request.InPath, request.OutPath)
}

func (c *CommandEngine) run(ctx context.Context, text, in, out string) error {
	replacer := strings.NewReplacer("{text}", text, "{in}", in, "{out}", out)
	args := make([]string, len(c.params.Args))
	for i, arg := range c.params.Args {
		args[i] = replacer.Replace(arg)
	}

	cmd := exec.CommandContext(ctx, c.params.Program, args...)
	if text != "" && !slices.ContainsFunc(c.params.Args, func(arg string) bool { return strings.Contains(arg, "{text}") }) {
		cmd.Stdin = strings.NewReader(text)
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	slog.Debug("Running engine command", "program", c.params.Program, "args", args)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %w: %s", c.params.Program, audiobook.ErrEngine, err, strings.TrimSpace(output.String()))
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%s produced no audio at %s: %w", c.params.Program, out, audiobook.ErrEngine)
	}
	return nil
}
