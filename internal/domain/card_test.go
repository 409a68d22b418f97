package domain

import (
	"errors"
	"testing"
)

func TestFormatTags(t *testing.T) {
	testCases := []struct {
		name     string
		tags     []string
		expected string
	}{
		{name: "No tags", tags: nil, expected: ""},
		{name: "Empty slice", tags: []string{}, expected: ""},
		{name: "One tag", tags: []string{"t"}, expected: " t "},
		{name: "Two tags", tags: []string{"a", "b"}, expected: " a b "},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatTags(tc.tags); got != tc.expected {
				t.Errorf("Expected tags to be %q, but got %q", tc.expected, got)
			}
		})
	}
}

func TestJoinFields(t *testing.T) {
	c := Content{Front: "A", Back: "B"}
	got := JoinFields(c.Fields(""))
	if got != "A\x1fB\x1f\x1f" {
		t.Errorf("Expected joined fields %q, but got %q", "A\x1fB\x1f\x1f", got)
	}

	got = JoinFields(c.Fields("[sound:x.mp3]"))
	if got != "A\x1fB\x1f[sound:x.mp3]\x1f" {
		t.Errorf("Expected sound reference in third field, but got %q", got)
	}
}

func TestContentValidate(t *testing.T) {
	testCases := []struct {
		name    string
		content Content
		valid   bool
	}{
		{name: "Valid", content: Content{Front: "A", Back: "B", Tags: []string{"t"}}, valid: true},
		{name: "Empty back is allowed", content: Content{Front: "A"}, valid: true},
		{name: "Empty front", content: Content{Back: "B"}, valid: false},
		{name: "Separator in front", content: Content{Front: "A\x1fB"}, valid: false},
		{name: "Separator in back", content: Content{Front: "A", Back: "x\x1f"}, valid: false},
		{name: "Tag with space", content: Content{Front: "A", Tags: []string{"two words"}}, valid: false},
		{name: "Empty tag", content: Content{Front: "A", Tags: []string{""}}, valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.content.Validate()
			if tc.valid && err != nil {
				t.Fatalf("Expected content to be valid, but got %v", err)
			}
			if !tc.valid && !errors.Is(err, ErrInvalidContent) {
				t.Fatalf("Expected ErrInvalidContent, but got %v", err)
			}
		})
	}
}
