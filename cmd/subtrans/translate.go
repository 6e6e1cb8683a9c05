package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/models"
	"github.com/Belphemur/SubTranslate/internal/services"
)

type translateOptions struct {
	outputDir string
	quiet     bool
	patch     config.SettingsPatch
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var opts translateOptions

	cmd := &cobra.Command{
		Use:   "translate <file>...",
		Short: "Translate subtitle files, archives of them, and their matching videos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			for name, dst := range map[string]**string{
				"provider":      &opts.patch.Provider,
				"model":         &opts.patch.Model,
				"language":      &opts.patch.Language,
				"language-code": &opts.patch.LanguageCode,
				"description":   &opts.patch.Description,
			} {
				if flags.Changed(name) {
					value, _ := flags.GetString(name)
					*dst = &value
				}
			}
			return runTranslate(cmd, cfg, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", ".", "Directory for translated subtitles")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print batch progress")
	cmd.Flags().String("provider", "", "Translation provider (gemini or openai)")
	cmd.Flags().String("model", "", "Model name")
	cmd.Flags().StringP("language", "l", "", "Target language name, e.g. German")
	cmd.Flags().String("language-code", "", "Target language code used in output names, e.g. de")
	cmd.Flags().String("description", "", "Context about the media given to the model")
	return cmd
}

func runTranslate(cmd *cobra.Command, cfg *config.Config, opts translateOptions, paths []string) error {
	uploadDir, err := os.MkdirTemp("", "subtrans-upload-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(uploadDir)

	a, err := newApp(cfg, uploadDir, opts.outputDir)
	if err != nil {
		return err
	}
	defer a.Close()

	files := make([]services.UploadedFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		files = append(files, services.UploadedFile{Name: filepath.Base(p), Content: f})
	}
	stored, err := a.uploads.Store(files)
	if err != nil {
		return err
	}

	var pairs []models.FilePair
	for _, m := range stored.Matches {
		if m.Subtitle != nil {
			pairs = append(pairs, models.FilePair{Subtitle: *m.Subtitle, Video: m.Video})
		}
	}
	if len(pairs) == 0 {
		return errors.New("no subtitle files to translate")
	}

	if !opts.quiet {
		sub := a.events.Subscribe()
		defer a.events.Unsubscribe(sub)
		go printProgress(cmd.ErrOrStderr(), sub.C)
	}

	resp := a.jobs.TranslateFiles(cmd.Context(), services.TranslateRequest{
		Files:    pairs,
		Settings: a.settings.Get().Apply(opts.patch),
	})

	rows := make([][]string, 0, len(resp.Results))
	failed := 0
	for _, r := range resp.Results {
		if r.Status == models.FileStatusFailed {
			failed++
		}
		rows = append(rows, []string{
			r.OriginalSubtitle,
			orDash(r.TranslatedSubtitle),
			string(r.Status),
			strconv.Itoa(r.TotalBlocks),
			strconv.Itoa(r.DegradedBlocks),
			orDash(r.Error),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Subtitle", "Output", "Status", "Blocks", "Degraded", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(resp.Results))
	}
	return nil
}

func printProgress(w io.Writer, events <-chan models.Event) {
	for e := range events {
		switch e.Type {
		case models.EventProgress:
			fmt.Fprintf(w, "[%d/%d] %s\n", e.Current, e.Total, e.Filename)
		case models.EventTranslationProgress:
			fmt.Fprintf(w, "  %s: %d/%d blocks\n", e.Filename, e.Current, e.Total)
		}
	}
}
