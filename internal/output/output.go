// Package output provides colored terminal output for the accesslint CLI.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/shreedharv16/accesslint/agentloop"
	"github.com/shreedharv16/accesslint/findings"
)

// UI provides colored output and respects verbose mode.
type UI struct {
	Verbose bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// SeverityColor returns the string colored by finding severity.
func SeverityColor(sev findings.Severity) string {
	s := string(sev)
	switch sev {
	case findings.SeverityCritical:
		return red(s)
	case findings.SeveritySerious:
		return yellow(s)
	case findings.SeverityModerate:
		return cyan(s)
	default:
		return s
	}
}

// StatusColor returns the string colored by session status.
func StatusColor(status agentloop.SessionStatus) string {
	s := string(status)
	switch status {
	case agentloop.StatusCompleted:
		return green(s)
	case agentloop.StatusActive, agentloop.StatusCreated:
		return cyan(s)
	case agentloop.StatusCancelled:
		return yellow(s)
	case agentloop.StatusError, agentloop.StatusTimeout:
		return red(s)
	default:
		return s
	}
}

// ChangeColor returns the string colored by change kind.
func ChangeColor(kind agentloop.FileChangeKind) string {
	s := string(kind)
	switch kind {
	case agentloop.FileCreate:
		return green(s)
	case agentloop.FileModify:
		return yellow(s)
	case agentloop.FileDelete:
		return red(s)
	default:
		return s
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}
