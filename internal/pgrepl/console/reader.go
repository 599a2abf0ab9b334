package console

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

// ErrInterrupt is returned by a LineReader when the user pressed Ctrl-C.
var ErrInterrupt = readline.ErrInterrupt

// LineReader reads one line of user input. It returns io.EOF once the input is
// exhausted and ErrInterrupt when the line was interrupted.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// NewReadlineReader returns a LineReader for the terminal. Input history is kept
// in historyFile unless it is empty.
func NewReadlineReader(historyFile string) (LineReader, error) {
	choices := make([]readline.PrefixCompleterInterface, 0, len(menuItems))
	for _, item := range menuItems {
		choices = append(choices, readline.PcItem(item.choice))
	}
	autoComplete := readline.NewPrefixCompleter(choices...)

	instance, err := readline.NewEx(&readline.Config{
		Prompt:          promptChoice,
		HistoryFile:     historyFile,
		AutoComplete:    autoComplete,
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, err
	}

	return readlineReader{instance: instance}, nil
}

// DefaultHistoryFile returns the history file in the home directory of the user.
func DefaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pgrepl_history")
}

type readlineReader struct {
	instance *readline.Instance
}

func (r readlineReader) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	return r.instance.Readline()
}

func (r readlineReader) Close() error { return r.instance.Close() }

// NewPlainReader returns a LineReader over a non-interactive input such as a pipe.
// Prompts are written to w.
func NewPlainReader(r io.Reader, w io.Writer) LineReader {
	return &plainReader{r: bufio.NewReader(r), w: w}
}

type plainReader struct {
	r *bufio.Reader
	w io.Writer
}

func (r *plainReader) ReadLine(prompt string) (string, error) {
	if _, err := io.WriteString(r.w, prompt); err != nil {
		return "", err
	}

	line, err := r.r.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if errors.Is(err, io.EOF) && line != "" {
		return line, nil
	}
	return line, err
}

func (r *plainReader) Close() error { return nil }
