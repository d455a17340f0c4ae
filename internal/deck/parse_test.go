package deck

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []Entry
	}{
		{
			name:     "Simple Q&A",
			input:    "Q: What is the capital of France?\nA: Paris",
			expected: []Entry{{Front: "What is the capital of France?", Back: "Paris"}},
		},
		{
			name:     "Subject override",
			input:    "Q: What is 1+1?\nA: 2\nS: maths",
			expected: []Entry{{Front: "What is 1+1?", Back: "2", Subject: "maths"}},
		},
		{
			name: "Multiline back",
			input: `
Q: What are the primary colors?
A: Red
Blue
Yellow
`,
			expected: []Entry{{Front: "What are the primary colors?", Back: "Red\nBlue\nYellow"}},
		},
		{
			name: "Two cards without separator",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expected: []Entry{
				{Front: "First question", Back: "First answer"},
				{Front: "Second question", Back: "Second answer"},
			},
		},
		{
			name:     "Separator closes a card",
			input:    "Q: One\nA: 1\n---\nstray text\nQ: Two\nA: 2\n---\n",
			expected: []Entry{{Front: "One", Back: "1"}, {Front: "Two", Back: "2"}},
		},
		{
			name:     "No cards, just text",
			input:    "This is a file with no questions.",
			expected: nil,
		},
		{
			name:     "Prefixes with no space",
			input:    "Q:Question\nA:Answer",
			expected: []Entry{{Front: "Question", Back: "Answer"}},
		},
		{
			name:     "Windows line endings",
			input:    "Q: Question\r\nA: Answer\r\n",
			expected: []Entry{{Front: "Question", Back: "Answer"}},
		},
		{
			name:     "Answer without question is dropped",
			input:    "A: orphan\n---\nQ: kept\nA: yes",
			expected: []Entry{{Front: "kept", Back: "yes"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}
			if len(entries) != len(tc.expected) {
				t.Fatalf("Expected %d entries, got %d: %#v", len(tc.expected), len(entries), entries)
			}
			for i, want := range tc.expected {
				if entries[i] != want {
					t.Errorf("entry %d: expected %#v, got %#v", i, want, entries[i])
				}
			}
		})
	}
}

func TestCardID(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		e := Entry{Front: "Test", Back: "Answer"}
		if CardID(e) != CardID(e) {
			t.Error("Expected identical entries to share an id")
		}
	})

	t.Run("normalization produces same id", func(t *testing.T) {
		a := Entry{Front: "  what is go? ", Back: "A programming language.\r\n"}
		b := Entry{Front: "What Is Go?", Back: "a programming language."}
		if CardID(a) != CardID(b) {
			t.Error("Expected ids to match after normalization")
		}
	})

	t.Run("subject does not change identity", func(t *testing.T) {
		a := Entry{Front: "Q", Back: "A", Subject: "bio"}
		b := Entry{Front: "Q", Back: "A"}
		if CardID(a) != CardID(b) {
			t.Error("Expected subject to be excluded from the id")
		}
	})

	t.Run("front and back stay separate", func(t *testing.T) {
		a := Entry{Front: "ab", Back: "c"}
		b := Entry{Front: "a", Back: "bc"}
		if CardID(a) == CardID(b) {
			t.Error("Expected different splits to produce different ids")
		}
	})

	t.Run("is 64 hex characters", func(t *testing.T) {
		if got := len(CardID(Entry{Front: "Q", Back: "A"})); got != 64 {
			t.Errorf("Expected 64 characters, got %d", got)
		}
	})
}
