package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"minimum valid password", "ab!!1", true},
		{"long password with punctuation", "correct.horse!battery", true},
		{"punctuation only", "!!!!!", true},
		{"too short", "a!!b", false},
		{"one punctuation character", "abcd!", false},
		{"no punctuation", "abcdefgh", false},
		{"empty", "", false},
		{"exactly five with two symbols", "a,b.c", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrWeakPassword)
			}
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	password := "ab!!1"

	hashed, err := HashPassword(password)
	assert.NoError(t, err)
	assert.NotEmpty(t, hashed)
	assert.NotContains(t, hashed, password)

	assert.True(t, VerifyPassword(password, hashed))
	assert.False(t, VerifyPassword("wrong!!pw", hashed))
}

func TestVerifyPassword_MalformedDigest(t *testing.T) {
	assert.False(t, VerifyPassword("ab!!1", "not-a-digest"))
	assert.False(t, VerifyPassword("ab!!1", "toomany$parts$here"))
	assert.False(t, VerifyPassword("ab!!1", "!!notbase64!!$AAAA"))
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	first, err := HashPassword("ab!!1")
	assert.NoError(t, err)
	second, err := HashPassword("ab!!1")
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}
