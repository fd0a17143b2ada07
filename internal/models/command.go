package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Validation errors
var (
	ErrEmptyTag     = errors.New("tag must not be empty")
	ErrEmptyCommand = errors.New("command must not be empty")
)

// Command is a shell command saved under a tag
type Command struct {
	Tag  string // Unique key, compared bytewise
	Text string // Command line passed to the shell verbatim
}

// NewCommand creates a Command, trimming surrounding whitespace from both fields
func NewCommand(tag, text string) Command {
	return Command{
		Tag:  strings.TrimSpace(tag),
		Text: strings.TrimSpace(text),
	}
}

// Validate checks that the command can be persisted
func (c Command) Validate() error {
	if err := ValidateTag(c.Tag); err != nil {
		return err
	}
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyCommand
	}
	return nil
}

// Key returns the store key for the command's tag
func (c Command) Key() []byte {
	return []byte(c.Tag)
}

// ValidateTag rejects empty tags and tags with whitespace or control characters.
func ValidateTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return ErrEmptyTag
	}
	for _, r := range tag {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("tag %q contains whitespace or control characters", tag)
		}
	}
	return nil
}

// PrefixEnd returns the exclusive upper bound of the key range holding every
// key that starts with prefix: the prefix with its last byte incremented.
// Trailing 0xff bytes carry into the previous byte. A nil result means the
// range is unbounded above (empty or all-0xff prefix).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
