package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Belphemur/SubTranslate/internal/matcher"
	"github.com/Belphemur/SubTranslate/internal/models"
)

func newMatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "match <file>...",
		Short: "Show how subtitles pair with videos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), matchTable(matcher.MatchPaths(args)))
			return nil
		},
	}
}

func matchTable(matches []models.FileMatch) string {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{orDash(m.SubtitleName()), orDash(m.VideoName()), string(m.Status)})
	}
	return renderTable([]string{"Subtitle", "Video", "Status"}, rows, nil)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
