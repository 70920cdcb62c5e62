package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"speechquest/internal/app/recorder"
	"speechquest/internal/app/speech"
	"speechquest/internal/pkg/logx"
)

type options struct {
	baseURL string
	timeout time.Duration
}

func (o *options) client() *speech.Client {
	return speech.NewClient(speech.Config{
		BaseURL: o.baseURL,
		Timeout: o.timeout,
	}, logx.Component("questctl"))
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "questctl",
		Short:         "Talk to the SpeechQuest speech service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("SPEECH_BASE_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8000"
	}
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", defaultURL, "speech service base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", speech.DefaultTimeout, "per-call timeout")

	tts := &cobra.Command{
		Use:   "tts",
		Short: "Text-to-speech operations",
	}
	tts.AddCommand(newGenerateCmd(opts), newCloneCmd(opts))

	root.AddCommand(newHealthCmd(opts), tts, newAnalyzeCmd(opts))
	return root
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Call the liveness probe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newGenerateCmd(opts *options) *cobra.Command {
	var voiceID, out string

	cmd := &cobra.Command{
		Use:   "generate <text>",
		Short: "Synthesize text, optionally in a cloned voice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audio, err := opts.client().Generate(cmd.Context(), args[0], voiceID)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(audio.Data)
				return err
			}
			if err := os.WriteFile(out, audio.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes (%s) to %s\n", len(audio.Data), audio.ContentType, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&voiceID, "voice-id", "", "cloned voice to speak with")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")
	return cmd
}

func newCloneCmd(opts *options) *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "clone <sample-file>",
		Short: "Register a voice sample and print the voice id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var voiceID string
			err := withClip(args[0], func(clip speech.Clip) error {
				var err error
				voiceID, err = opts.client().Clone(cmd.Context(), clip, name, description)
				return err
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"voice_id": voiceID})
		},
	}

	cmd.Flags().StringVar(&name, "name", speech.DefaultCloneName, "voice name")
	cmd.Flags().StringVar(&description, "description", speech.DefaultCloneDescription, "voice description")
	return cmd
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <truth-file> <recorded-file>",
		Short: "Compare a recording with its reference clip",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result speech.Analysis
			err := withClip(args[0], func(truth speech.Clip) error {
				return withClip(args[1], func(recorded speech.Clip) error {
					var err error
					result, err = opts.client().Analyze(cmd.Context(), truth, recorded)
					return err
				})
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

// withClip opens path as an upload part for the duration of fn.
func withClip(path string, fn func(speech.Clip) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	format := recorder.NormalizeFormat(filepath.Ext(path))
	return fn(speech.Clip{
		Filename:    filepath.Base(path),
		ContentType: recorder.ContentTypeFor(format),
		Body:        f,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
