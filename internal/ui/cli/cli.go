// Package cli renders the training and prediction reports on the terminal.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/graphmol/molnet/internal/dataset"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))
	bestStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
	permeableStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))
	impermeableStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("9"))
)

// UI writes tabular reports to stdout. If color is false the lipgloss styles
// are dropped, for logs and dumb terminals.
type UI struct {
	color bool
}

func New(color bool) *UI {
	return &UI{color: color}
}

func (ui *UI) style(s lipgloss.Style, text string) string {
	if !ui.color {
		return text
	}
	return s.Render(text)
}

// terminalWidth returns the width of stdout, or a conservative default when
// stdout is not a terminal.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// EpochHeader prints the column titles of the per-epoch report.
func (ui *UI) EpochHeader() {
	fmt.Println(ui.style(headerStyle,
		fmt.Sprintf("%5s  %12s  %12s  %12s", "Epoch", "Train Loss", "Valid AUC", "Valid Acc")))
}

// EpochRow prints one epoch of training metrics. The row is highlighted when
// the epoch improved the validation AUC.
func (ui *UI) EpochRow(epoch int, trainLoss, validAUC, validAccuracy float32, best bool) {
	row := fmt.Sprintf("%5d  %12.4f  %12.4f  %12.4f", epoch, trainLoss, validAUC, validAccuracy)
	if best {
		row = ui.style(bestStyle, row+"  *")
	}
	fmt.Println(row)
}

// FinalReport prints the held-out test metrics at the end of training.
func (ui *UI) FinalReport(testAUC, testAccuracy float32, numTest int) {
	fmt.Println()
	fmt.Println(ui.style(headerStyle, "Test set"))
	fmt.Printf("  Examples: %d\n", numTest)
	fmt.Printf("  ROC-AUC:  %.4f\n", testAUC)
	fmt.Printf("  Accuracy: %.4f\n", testAccuracy)
}

// Predictions prints one row per example with its predicted permeability
// probability, truncating long SMILES to the terminal width. With withLabels
// the true label is printed alongside.
func (ui *UI) Predictions(examples []dataset.Example, probabilities []float32, withLabels bool) {
	nameWidth := 0
	for _, example := range examples {
		if example.Name != example.SMILES && len(example.Name) > nameWidth {
			nameWidth = min(len(example.Name), 24)
		}
	}
	smilesWidth := terminalWidth() - 32 - nameWidth
	if smilesWidth < 20 {
		smilesWidth = 20
	}

	title := fmt.Sprintf("%-12s  %11s", "Prediction", "Probability")
	if withLabels {
		title += fmt.Sprintf("  %5s", "Label")
	}
	if nameWidth > 0 {
		title += fmt.Sprintf("  %-*s", nameWidth, "Name")
	}
	title += "  SMILES"
	fmt.Println(ui.style(headerStyle, title))

	for ii, example := range examples {
		prob := probabilities[ii]
		verdict := ui.style(impermeableStyle, "impermeable ")
		if prob >= 0.5 {
			verdict = ui.style(permeableStyle, "permeable   ")
		}
		row := fmt.Sprintf("%s  %11.4f", verdict, prob)
		if withLabels {
			row += fmt.Sprintf("  %5.0f", example.Label)
		}
		if nameWidth > 0 {
			row += fmt.Sprintf("  %-*s", nameWidth, truncate(example.Name, nameWidth))
		}
		row += "  " + ui.style(dimStyle, truncate(example.SMILES, smilesWidth))
		fmt.Println(row)
	}
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-1] + "…"
}

// Separator prints a horizontal rule across the terminal.
func (ui *UI) Separator() {
	fmt.Println(ui.style(dimStyle, strings.Repeat("─", min(terminalWidth(), 60))))
}
