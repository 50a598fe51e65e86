package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fyrsmithlabs/recur/internal/orchestrator"
)

const previewWidth = 60

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	finalStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// renderSummary writes a table of every graded record to w, marking the
// final record.
func renderSummary(w io.Writer, result *orchestrator.Result, provider string) error {
	if w == io.Discard {
		return nil
	}

	finalRow := -1
	rows := make([][]string, 0, len(result.Records))
	for i, r := range result.Records {
		score, _ := r.Score()
		marker := ""
		if r == result.Final {
			marker = "★"
			finalRow = i
		}
		rows = append(rows, []string{
			marker,
			r.Agent(),
			strconv.FormatFloat(score, 'f', 2, 64),
			preview(r.Text(), previewWidth),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("", "AGENT", "SCORE", "ANSWER").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == finalRow:
				return finalStyle
			default:
				return cellStyle
			}
		})

	finalScore, _ := result.Final.Score()
	header := fmt.Sprintf("%s  %s %s  %s %d  %s %d  %s %s  %s %.2f",
		titleStyle.Render("recur"),
		labelStyle.Render("run"), result.RunID,
		labelStyle.Render("rounds"), result.Rounds,
		labelStyle.Render("alts"), result.Alts,
		labelStyle.Render("backend"), provider,
		labelStyle.Render("final"), finalScore,
	)
	footer := labelStyle.Render(fmt.Sprintf("%d answers graded in %s", len(result.Records), result.Duration.Round(time.Millisecond)))

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, header, t.Render(), footer))
	return err
}

// preview flattens whitespace and truncates s to n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
