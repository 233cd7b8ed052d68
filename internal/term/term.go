// Package term renders 80-column output for vintage terminals: screen
// clearing, two-column numbered lists and keypress-driven pagination.
package term

import (
	"fmt"
	"io"
)

const (
	// DefaultPageLines is the page height used for pagination, leaving
	// room for the prompt on a 24-line screen.
	DefaultPageLines = 22

	// DefaultLeftPad is the width of the left column in two-column lists.
	DefaultLeftPad = 38

	// DefaultMaxName keeps an item name plus its "NN] " prefix inside the
	// left column.
	DefaultMaxName = 34
)

// ansiClear is the ANSI clear-screen and cursor-home sequence.
var ansiClear = []byte("\x1b[2J\x1b[H")

// KeyReader returns the next raw keypress from the terminal.
type KeyReader func() (byte, error)

// Screen writes terminal output over a session's link. Terminals that do not
// understand ANSI escape sequences get plain-newline fallbacks.
type Screen struct {
	w    io.Writer
	ansi bool
}

// NewScreen creates a screen over w. ansi declares escape-sequence support.
func NewScreen(w io.Writer, ansi bool) *Screen {
	return &Screen{w: w, ansi: ansi}
}

// ANSI reports whether the terminal understands escape sequences.
func (s *Screen) ANSI() bool { return s.ansi }

// Clear clears the screen, or emits a newline on dumb terminals.
func (s *Screen) Clear() error {
	if s.ansi {
		_, err := s.w.Write(ansiClear)
		return err
	}

	_, err := s.w.Write([]byte("\r\n"))

	return err
}

// Print writes text as-is, dropping non-ASCII bytes the terminal cannot show.
func (s *Screen) Print(text string) error {
	_, err := s.w.Write(sanitize(text))
	return err
}

// Printf formats and prints.
func (s *Screen) Printf(format string, args ...any) error {
	return s.Print(fmt.Sprintf(format, args...))
}

// Line prints text followed by CRLF.
func (s *Screen) Line(text string) error {
	return s.Print(text + "\r\n")
}

// WaitKey prompts for a keypress and returns it upper-cased.
func (s *Screen) WaitKey(readKey KeyReader, quitPrompt bool) (byte, error) {
	prompt := "\r\nPress any key to continue...\r\n"
	if quitPrompt {
		prompt = "\r\nPress any key to continue (Q to quit)...\r\n"
	}
	if err := s.Print(prompt); err != nil {
		return 0, err
	}

	key, err := readKey()
	if err != nil {
		return 0, err
	}
	if key >= 'a' && key <= 'z' {
		key -= 'a' - 'A'
	}

	return key, nil
}

// Paginate prints lines a page at a time, pausing for a keypress between
// pages. It returns true if the reader quit early with Q.
func (s *Screen) Paginate(lines []string, pageLines int, readKey KeyReader, quitPrompt bool) (bool, error) {
	if pageLines <= 0 {
		pageLines = DefaultPageLines
	}

	count := 0
	for _, line := range lines {
		if err := s.Line(line); err != nil {
			return false, err
		}

		count++
		if count >= pageLines {
			key, err := s.WaitKey(readKey, quitPrompt)
			if err != nil {
				return false, err
			}
			if key == 'Q' {
				return true, nil
			}
			count = 0
		}
	}

	if quitPrompt {
		key, err := s.WaitKey(readKey, true)
		if err != nil {
			return false, err
		}
		if key == 'Q' {
			return true, nil
		}
	}

	return false, nil
}

// TwoColumns lays out numbered items in two columns, numbering down the left
// column first.
func TwoColumns(items []string, leftPad int) []string {
	if leftPad <= 0 {
		leftPad = DefaultLeftPad
	}

	half := (len(items) + 1) / 2
	left := items[:half]
	right := items[half:]

	lines := make([]string, 0, half)
	for i := range left {
		leftCell := fmt.Sprintf("%2d] %s", i+1, left[i])
		if i < len(right) && right[i] != "" {
			lines = append(lines, fmt.Sprintf("%-*s%2d] %s", leftPad, leftCell, i+1+half, right[i]))
		} else {
			lines = append(lines, leftCell)
		}
	}

	return lines
}

// Truncate shortens a name so it fits the left column with its prefix.
func Truncate(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxName
	}
	if len(name) <= maxLen {
		return name
	}

	return name[:maxLen-3] + "..."
}

// sanitize drops bytes a 7-bit terminal cannot display, keeping printable
// ASCII plus CR, LF, TAB and ESC.
func sanitize(text string) []byte {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		b := text[i]
		if b < 0x80 && (b >= 0x20 || b == '\r' || b == '\n' || b == '\t' || b == 0x1b) {
			out = append(out, b)
		}
	}

	return out
}
