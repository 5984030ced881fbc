package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPrivateSections(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no tags",
			input:    "Hello world",
			expected: "Hello world",
		},
		{
			name:     "single private section",
			input:    "Hello <private>secret</private> world",
			expected: "Hello  world",
		},
		{
			name:     "multiline private section",
			input:    "Hello <private>\nmultiline\nsecret\n</private> world",
			expected: "Hello  world",
		},
		{
			name:     "entirely private",
			input:    "<private>everything is secret</private>",
			expected: "",
		},
		{
			name:     "unmatched opening tag",
			input:    "Hello <private>unclosed",
			expected: "Hello <private>unclosed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripPrivateSections(tt.input))
		})
	}
}

func TestRedactSecrets(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bearer token",
			input:    "curl -H 'Authorization: Bearer abc123def456ghi789'",
			expected: "curl -H 'Authorization: [redacted]'",
		},
		{
			name:     "api key assignment",
			input:    "set API_KEY=supersecretvalue before running",
			expected: "set API_KEY=[redacted] before running",
		},
		{
			name:     "quoted password in config",
			input:    `password: "hunter2etc"`,
			expected: `password: [redacted]`,
		},
		{
			name:     "vendor prefixed key",
			input:    "use sk-abcdefghijklmnopqrstuvwx for the client",
			expected: "use [redacted] for the client",
		},
		{
			name:     "long hex blob",
			input:    "session 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08 expired",
			expected: "session [redacted] expired",
		},
		{
			name:     "short hex untouched",
			input:    "commit deadbeef broke the build",
			expected: "commit deadbeef broke the build",
		},
		{
			name:     "plain prose untouched",
			input:    "TCP uses a three-way handshake to open a connection.",
			expected: "TCP uses a three-way handshake to open a connection.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RedactSecrets(tt.input))
		})
	}
}

func TestIsEntirelyPrivate(t *testing.T) {
	assert.True(t, IsEntirelyPrivate("<private>all of it</private>"))
	assert.True(t, IsEntirelyPrivate("  <private>a</private>\n<private>b</private>  "))
	assert.False(t, IsEntirelyPrivate("visible <private>hidden</private>"))
}

func TestClean(t *testing.T) {
	input := "  Deploy notes <private>prod creds here</private>\nexport TOKEN=abc123xyz  "
	assert.Equal(t, "Deploy notes \nexport TOKEN=[redacted]", Clean(input))
}
