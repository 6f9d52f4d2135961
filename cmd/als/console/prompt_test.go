package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptLine(t *testing.T) {
	assert.Equal(t, "write register? [N/y]: ", promptLine("write register?", []string{No, Yes}))
}

func TestMatch(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"", No},
		{"y", Yes},
		{" Y ", Yes},
		{"n", No},
		{"maybe", No},
	}
	for _, test := range tests {
		assert.Equal(t, test.out, match(test.in, []string{No, Yes}), "input %q", test.in)
	}
}
