package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/bensave/wallet/finance"
	"github.com/bensave/wallet/session"
)

// Theme colors (Flexoki Dark)
var (
	colorTextDim = lipgloss.Color("#575653")
	colorText    = lipgloss.Color("#FFFCF0")
	colorAccent  = lipgloss.Color("#3AA99F")
	colorGreen   = lipgloss.Color("#879A39")
	colorOrange  = lipgloss.Color("#DA702C")
	colorRed     = lipgloss.Color("#D14D41")
	colorYellow  = lipgloss.Color("#D0A215")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorTextDim).
			Padding(0, 1)

	errorTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)
)

// levelColor maps a budget status to the widget's progress-bar colors.
func levelColor(level finance.StatusLevel) lipgloss.Color {
	switch level {
	case finance.LevelDanger:
		return colorRed
	case finance.LevelWarning:
		return colorOrange
	case finance.LevelSafe:
		return colorGreen
	default:
		return colorTextDim
	}
}

// renderBar draws a progress bar for a percentage in [0, 100].
func renderBar(pct decimal.Decimal, width int, color lipgloss.Color) string {
	filled := int(pct.Mul(decimal.NewFromInt(int64(width))).Div(decimal.NewFromInt(100)).IntPart())
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	barStyle := lipgloss.NewStyle().Foreground(color)
	dimStyle := lipgloss.NewStyle().Foreground(colorTextDim)
	return barStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

// renderView renders the three widget cards: balance, budget, savings.
func renderView(v session.View) string {
	balance := cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Balance"),
		valueStyle.Bold(true).Render(finance.FormatCedi(v.Balance)),
	))

	budgetLines := []string{titleStyle.Render("Weekly Budget")}
	if v.Budget.Level == finance.LevelNone {
		budgetLines = append(budgetLines, valueStyle.Render(v.Budget.Message))
	} else {
		color := levelColor(v.Budget.Level)
		budgetLines = append(budgetLines,
			row("Budget", finance.FormatCedi(v.Budget.Amount)),
			row("Spent", finance.FormatCedi(v.Budget.Spent)),
			row("Remaining", finance.FormatCedi(v.Budget.Remaining)),
			renderBar(v.Budget.ProgressPercent(), 24, color)+" "+finance.FormatPercent(v.Budget.Percentage),
			lipgloss.NewStyle().Foreground(color).Render(v.Budget.Message),
		)
		if v.Budget.Period != nil {
			budgetLines = append(budgetLines, row("Days left", fmt.Sprintf("%d", v.Budget.DaysLeft)))
		}
	}
	budget := cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, budgetLines...))

	savingsLines := []string{titleStyle.Render("Savings Goal")}
	if !v.Savings.Goal.IsPositive() {
		savingsLines = append(savingsLines,
			row("Saved", finance.FormatCedi(v.Savings.Saved)),
			valueStyle.Render("No savings goal set."))
	} else {
		color := colorYellow
		if v.Savings.GoalReached {
			color = colorGreen
		}
		savingsLines = append(savingsLines,
			row("Goal", finance.FormatCedi(v.Savings.Goal)),
			row("Saved", finance.FormatCedi(v.Savings.Saved)),
			row("To go", finance.FormatCedi(v.Savings.Remaining)),
			renderBar(v.Savings.ProgressPercent(), 24, color)+" "+finance.FormatPercent(v.Savings.Percentage),
		)
		if v.Savings.Deadline != nil {
			savingsLines = append(savingsLines, row("Deadline", v.Savings.Deadline.Format(finance.DeadlineLayout)))
		}
	}
	savings := cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, savingsLines...))

	out := lipgloss.JoinVertical(lipgloss.Left, balance, budget, savings)
	if v.RolledOver {
		out = renderNotice(finance.NewWeekNotice()) + "\n" + out
	}
	return out + "\n"
}

func renderNotice(n finance.Notice) string {
	return titleStyle.Render(n.Title) + "\n" + valueStyle.Render(n.Message)
}

func printNotice(n finance.Notice) {
	fmt.Println(renderNotice(n))
}

// renderError prints a notice for domain errors and the raw error otherwise.
func renderError(err error) {
	if errors.Is(err, huh.ErrUserAborted) {
		return
	}
	if finance.Classify(err) == finance.ClassInternal {
		fmt.Fprintln(os.Stderr, errorTitleStyle.Render("Error")+" "+err.Error())
		return
	}
	n := finance.NoticeFor(err)
	fmt.Fprintln(os.Stderr, errorTitleStyle.Render(n.Title)+"\n"+n.Message)
}

// confirm asks a yes/no question unless --yes was given.
func confirm(title, description string) (bool, error) {
	if flagYes {
		return true, nil
	}
	ok := false
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}
