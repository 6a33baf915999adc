package mailer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/broadcaster/pkg/mailer"
)

func TestEmail_Validate(t *testing.T) {
	t.Parallel()

	t.Run("complete", func(t *testing.T) {
		t.Parallel()

		e := &mailer.Email{From: "a@example.com", To: "b@example.com", Subject: "Hi", HTML: "<p>Hi</p>"}
		require.NoError(t, e.Validate())
	})

	t.Run("reports every missing field", func(t *testing.T) {
		t.Parallel()

		err := (&mailer.Email{Subject: "  "}).Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, mailer.ErrNoRecipient)
		assert.ErrorIs(t, err, mailer.ErrNoSender)
		assert.ErrorIs(t, err, mailer.ErrNoSubject)
		assert.ErrorIs(t, err, mailer.ErrNoContent)
	})
}

func TestFormatAddress(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"Acme Corp" <hello@acme.com>`, mailer.FormatAddress("Acme Corp", "hello@acme.com"))
	assert.Equal(t, "hello@acme.com", mailer.FormatAddress("", "hello@acme.com"))
}

func TestValidAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"user@example.com", true},
		{"user+tag@example.com", true},
		{"first.last@sub.example.org", true},
		{"invalid", false},
		{"missing@domain", false},
		{"two@@example.com", false},
		{"spa ce@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, mailer.ValidAddress(tt.in))
		})
	}
}
