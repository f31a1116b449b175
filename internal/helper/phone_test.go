package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRecipient(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"628123456789", "628123456789@s.whatsapp.net"},
		{"0812-3456-7890", "6281234567890@s.whatsapp.net"},
		{"+62 812 3456 789", "628123456789@s.whatsapp.net"},
		{"628123456789@s.whatsapp.net", "628123456789@s.whatsapp.net"},
		{"999@g.us", "999@g.us"},
		{"12345@lid", "12345@lid"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeRecipient(tc.in), "in=%q", tc.in)
	}
}
