package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDisplayName(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"abc", "abc", false},
		{"  Player_One  ", "Player_One", false},
		{"a1234567890123456789", "a1234567890123456789", false},
		{"ab", "", true},
		{"   ab   ", "", true},
		{"a12345678901234567890", "", true},
		{"has space", "", true},
		{"dash-name", "", true},
		{"émile", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeDisplayName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidUsername)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
