package utils

import (
	"crypto/rand"
	"errors"
)

// CredentialKeyLength is the length of generated credential store keys.
const CredentialKeyLength = 12

const keyCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateKey returns a random alphanumeric key of the given length.
// Bytes that would bias the distribution are rejected.
func GenerateKey(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("key length must be positive")
	}
	const limit = 256 - 256%len(keyCharset)

	key := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(key) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			key = append(key, keyCharset[int(b)%len(keyCharset)])
			if len(key) == length {
				break
			}
		}
	}
	return string(key), nil
}
