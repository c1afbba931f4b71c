package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ogero/stremio-autoarabic/internal/common"
	"github.com/ogero/stremio-autoarabic/internal/config"
	"github.com/ogero/stremio-autoarabic/pkg/srt"
	"github.com/ogero/stremio-autoarabic/pkg/stremio"
	"github.com/ogero/stremio-autoarabic/pkg/translate"
	"github.com/spf13/cobra"
)

func newTranslateCommand(envFile *string) *cobra.Command {
	var lang, output string
	var bom, stripAds bool

	cmd := &cobra.Command{
		Use:   "translate <file.srt>",
		Short: "Translate a local English SRT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if err := common.ValidateTargetLanguage(lang); err != nil {
				return err
			}
			target, _ := stremio.LookupLanguage(lang)

			// stdout may carry the subtitle itself
			common.Log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: common.ParseLevel(cfg.LogLevel)}))

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to os.ReadFile: %w", err)
			}

			doc, err := srt.Parse(srt.Decode(data))
			if err != nil {
				return fmt.Errorf("failed to srt.Parse: %w", err)
			}
			if stripAds {
				doc, _ = srt.CleanAds(doc)
			}

			translator := translate.New(translate.NewGoogle(cfg.TranslateBaseURL), translate.Options{
				Concurrency: cfg.TranslateConcurrency,
			})
			result, err := translator.Translate(cmd.Context(), doc.Texts(), "en", target.Code)
			if err != nil {
				return fmt.Errorf("failed to translate.Translator.Translate: %w", err)
			}

			translated, err := doc.WithTexts(result.Texts)
			if err != nil {
				return fmt.Errorf("failed to srt.Document.WithTexts: %w", err)
			}

			body := translated.Bytes()
			if bom {
				body = srt.WithBOM(body)
			}

			if output == "" {
				output = strings.TrimSuffix(args[0], ".srt") + "." + target.Code + ".srt"
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(body)
			} else {
				err = os.WriteFile(output, body, 0o644)
			}
			if err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			common.Log.Info("Translated subtitle",
				"cues", len(translated.Cues),
				"translated", result.Translated,
				"failed", result.Failed,
				"output", output,
			)

			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", stremio.DefaultLanguage, "Target language code")
	cmd.Flags().StringVarP(&output, "output", "o", "", `Output path, "-" for stdout (default <file>.<lang>.srt)`)
	cmd.Flags().BoolVar(&bom, "bom", true, "Prefix the output with a UTF-8 byte order mark")
	cmd.Flags().BoolVar(&stripAds, "strip-ads", false, "Remove advertisement cues before translating")

	return cmd
}
