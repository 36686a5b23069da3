package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// statusKind classifies a status line for tagging and color.
type statusKind string

const (
	statusInfo  statusKind = "info"
	statusOK    statusKind = "ok"
	statusWarn  statusKind = "warn"
	statusError statusKind = "error"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var kindColors = map[statusKind]string{
	statusOK:    ansiGreen,
	statusWarn:  ansiYellow,
	statusError: ansiRed,
	statusInfo:  ansiBlue,
}

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

// renderStatusLine formats one "Label: [TAG] message" line. Only the
// tag is colorized so messages stay readable on any background.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag := "[" + strings.ToUpper(string(kind)) + "]"
	if colorize {
		if color := kindColors[kind]; color != "" {
			tag = color + tag + ansiReset
		}
	}
	line := statusIndent + fmt.Sprintf("%-*s", statusLabelWidth, label+":") + " " + tag
	if message != "" {
		line += " " + message
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("=", len(title))
	if colorize {
		title = ansiBlue + title + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{title, rule}
}

// shouldColorize enables color only for real terminals, honoring the
// NO_COLOR convention.
func shouldColorize(writer io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
