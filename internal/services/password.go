package services

import (
	cryptorand "crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

// ASCII punctuation set counted by the password policy.
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// ErrWeakPassword is returned when a password fails the strength policy.
var ErrWeakPassword = errors.New("password must be at least 5 characters with at least 2 punctuation characters")

// ValidatePassword enforces the registration policy: length >= 5 and at
// least 2 punctuation characters. The policy is fixed, not configurable.
func ValidatePassword(password string) error {
	if len(password) < 5 || countPunctuation(password) < 2 {
		return ErrWeakPassword
	}
	return nil
}

func countPunctuation(s string) int {
	count := 0
	for _, c := range s {
		if strings.ContainsRune(punctuation, c) {
			count++
		}
	}
	return count
}

func argon2Params() (time, memory uint32, threads uint8, keyLen uint32) {
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	return uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length"))
}

// HashPassword produces a salted argon2id digest in salt$hash form.
func HashPassword(password string) (string, error) {
	time, memory, threads, keyLen := argon2Params()

	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, time, memory, threads, keyLen)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword checks a password against a stored digest.
func VerifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	time, memory, threads, keyLen := argon2Params()
	computedHash := argon2.IDKey([]byte(password), salt, time, memory, threads, keyLen)
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
