// Package ui holds the plain terminal output of the CLI: colours, the line
// progress display, the end-of-run summary table and desktop notifications.
package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Banner printed at the top of interactive commands
const Banner = `
   __ _ _ __ ___   ___  ___ _   _ _ __   ___
  / _' | '_ ' _ \ / _ \/ __| | | | '_ \ / __|
 | (_| | | | | | | (_) \__ \ |_| | | | | (__
  \__,_|_| |_| |_|\___/|___/\__, |_| |_|\___|
                             |___/  AMOS webcam archive sync
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// plain disables colour when stdout is not a terminal
var plain = !term.IsTerminal(int(os.Stdout.Fd()))

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if plain {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// SetPlain forces colour off (true) or on (false)
func SetPlain(v bool) {
	plain = v
}

// IsInteractive reports whether stdout is a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(w io.Writer, msg string, err error) {
	if err != nil {
		fmt.Fprintln(w, Red(msg+": "+err.Error()))
		return
	}
	fmt.Fprintln(w, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, Yellow(msg))
}
