package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func setupMockStdin(input string) func() {
	originalStdin := stdin
	stdin = bufio.NewReader(strings.NewReader(input))
	return func() { stdin = originalStdin }
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		name, input        string
		question, def      string
		options            []string
		want, wantRendered string
	}{
		{
			name:     "free text",
			input:    "ola@example.com\n",
			question: "Email",
			want:     "ola@example.com", wantRendered: "Email: ",
		},
		{
			name:     "default on empty input",
			input:    "\n",
			question: "Username", def: "ola",
			want: "ola", wantRendered: "Username [ola]: ",
		},
		{
			name:     "answer among options",
			input:    "n\n",
			question: "Edit again?", def: "y", options: []string{"y", "n"},
			want: "n", wantRendered: "Edit again? (Y/n): ",
		},
		{
			name:     "default added to options",
			input:    "\n",
			question: "Edit again?", def: "yes", options: []string{"no"},
			want: "yes", wantRendered: "Edit again? (YES/no): ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore := setupMockStdin(tt.input)
			defer restore()

			var buf bytes.Buffer
			if got := prompt2(&buf, tt.question, tt.def, tt.options...); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if got := buf.String(); got != tt.wantRendered {
				t.Errorf("rendered %q, want %q", got, tt.wantRendered)
			}
		})
	}
}

func TestShiftArgs(t *testing.T) {
	tests := []struct {
		args     []string
		wantHead string
		wantTail int
	}{
		{nil, "", 0},
		{[]string{"create"}, "create", 0},
		{[]string{" rename ", "Trips", "2024"}, "rename", 2},
	}
	for _, tt := range tests {
		head, tail := shiftArgs(tt.args)
		if head != tt.wantHead || len(tail) != tt.wantTail {
			t.Errorf("shiftArgs(%q) = %q, %q", tt.args, head, tail)
		}
	}
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "read single line",
			input:    "line1\n",
			expected: "line1",
		},
		{
			name:     "read multiple lines",
			input:    "line1\nline2\n",
			expected: "line1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Set up mock stdin
			restore := setupMockStdin(tt.input)
			defer restore()

			result := readLine()
			if result != tt.expected {
				t.Errorf("readLine() = %q; expected %q", result, tt.expected)
			}
		})
	}
}
