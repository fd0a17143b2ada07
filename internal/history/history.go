// Package history reads commands out of bash and zsh history files.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Shell identifies which history file format to read.
type Shell string

const (
	Bash Shell = "bash"
	Zsh  Shell = "zsh"
)

// maxLineSize caps a single history entry; bufio's 64 KiB default is too small
// for pasted heredocs.
const maxLineSize = 1 << 20

var (
	ErrUnsupportedShell = errors.New("unsupported shell")
	ErrIndexOutOfRange  = errors.New("history index out of range")
)

// zshExtendedPrefix matches the EXTENDED_HISTORY header ": <epoch>:<elapsed>;".
var zshExtendedPrefix = regexp.MustCompile(`^:?\s*\d+:\d+;`)

// ParseShell converts a user-supplied shell name, accepting paths like /bin/zsh.
func ParseShell(name string) (Shell, error) {
	switch Shell(strings.ToLower(filepath.Base(strings.TrimSpace(name)))) {
	case Bash:
		return Bash, nil
	case Zsh:
		return Zsh, nil
	}
	return "", fmt.Errorf("%w: %q (expected bash or zsh)", ErrUnsupportedShell, name)
}

// FileName returns the history file name used by the shell.
func (s Shell) FileName() string {
	if s == Zsh {
		return ".zsh_history"
	}
	return ".bash_history"
}

// Path returns the shell's history file inside dir (normally $HOME).
func Path(dir string, shell Shell) string {
	return filepath.Join(dir, shell.FileName())
}

// Lines reads every command in the history file, in file order.
func Lines(path string, shell Shell) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s history: %w", shell, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, decode(scanner.Text(), shell))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s history: %w", shell, err)
	}
	return lines, nil
}

// Line returns the command at a 1-based index. Negative indexes count back
// from the newest entry, so -1 is the last command run.
//
// For zsh, the ": <epoch>:<elapsed>;" header is stripped only when the line
// starts with one. Lines from a history without EXTENDED_HISTORY are returned
// as written, so a command like "echo a; echo b" keeps its semicolons.
func Line(path string, shell Shell, index int) (string, error) {
	lines, err := Lines(path, shell)
	if err != nil {
		return "", err
	}

	pos := index - 1
	if index < 0 {
		pos = len(lines) + index
	}
	if index == 0 || pos < 0 || pos >= len(lines) {
		return "", fmt.Errorf("%w: %d (history has %d entries)", ErrIndexOutOfRange, index, len(lines))
	}
	return lines[pos], nil
}

func decode(line string, shell Shell) string {
	if shell != Zsh {
		return line
	}
	line = unmetafy(line)
	if loc := zshExtendedPrefix.FindStringIndex(line); loc != nil {
		return line[loc[1]:]
	}
	return line
}

// zsh writes bytes >= 0x83 as Meta (0x83) followed by the byte xor 0x20.
const zshMeta = 0x83

func unmetafy(line string) string {
	if strings.IndexByte(line, zshMeta) < 0 {
		return line
	}
	out := make([]byte, 0, len(line))
	for i := 0; i < len(line); i++ {
		if line[i] == zshMeta && i+1 < len(line) {
			i++
			out = append(out, line[i]^0x20)
			continue
		}
		out = append(out, line[i])
	}
	return string(out)
}
