package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Donor@Example.COM", "donor@example.com"},
		{"trims whitespace", "  donor@example.com \n", "donor@example.com"},
		{"empty stays empty", "", ""},
		{"already normalized", "donor@example.com", "donor@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.input))
		})
	}
}

func TestNormalizePlexID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips hyphens", "ab-cd-ef", "abcdef"},
		{"uuid shaped equals bare", "550E8400-E29B-41D4-A716-446655440000", "550e8400e29b41d4a716446655440000"},
		{"numeric id untouched", "123456", "123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePlexID(tt.input))
		})
	}
}

func TestIsRelayAddress(t *testing.T) {
	assert.True(t, IsRelayAddress("abc123@privaterelay.appleid.com"))
	assert.True(t, IsRelayAddress("ABC@PrivateRelay.AppleID.com"))
	assert.False(t, IsRelayAddress("donor@example.com"))
	assert.False(t, IsRelayAddress(""))
}
