// Package deck imports flashcards from markdown decks kept in local
// directories or git repositories.
package deck

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const (
	frontPrefix   = "Q:"
	backPrefix    = "A:"
	subjectPrefix = "S:"
	separator     = "---"
)

// Entry is one card as written in a deck file.
type Entry struct {
	Front   string
	Back    string
	Subject string // overrides the import subject when set
}

type field int

const (
	none field = iota
	front
	back
	subject
)

// ParseFile reads the deck file at path.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse extracts entries from r. A "Q:" line starts a new entry; "A:" and
// "S:" lines set its back and subject. Lines without a prefix continue the
// current field, and "---" closes the entry.
func Parse(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		cur     Entry
		active  = none
		block   []string
	)

	flush := func() {
		if active == none {
			return
		}
		text := strings.TrimRight(strings.Join(block, "\n"), "\n ")
		switch active {
		case front:
			cur.Front = text
		case back:
			cur.Back = text
		case subject:
			cur.Subject = strings.TrimSpace(text)
		}
		block = nil
	}
	finish := func() {
		flush()
		if cur.Front != "" {
			entries = append(entries, cur)
		}
		cur = Entry{}
		active = none
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == separator {
			finish()
			continue
		}

		next, rest, ok := prefixed(line)
		if !ok {
			if active != none {
				block = append(block, line)
			}
			continue
		}
		if next == front && active != none {
			finish()
		} else {
			flush()
		}
		active = next
		block = append(block, rest)
	}
	finish()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func prefixed(line string) (field, string, bool) {
	for _, p := range []struct {
		prefix string
		f      field
	}{
		{frontPrefix, front},
		{backPrefix, back},
		{subjectPrefix, subject},
	} {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			return p.f, strings.TrimPrefix(rest, " "), true
		}
	}
	return none, "", false
}
