package docdb

import (
	"crypto/rand"
	"fmt"
)

const (
	idLength   = 7
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// IDGenerator returns a new random document id
type IDGenerator func() (string, error)

// NewID returns 7 random lowercase base36 characters
func NewID() (string, error) {
	// 252 is the largest multiple of 36 below 256, bytes above are rejected to keep the distribution uniform
	const limit = 252

	id := make([]byte, 0, idLength)
	buf := make([]byte, idLength*2)
	for len(id) < idLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate id: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			id = append(id, idAlphabet[int(b)%len(idAlphabet)])
			if len(id) == idLength {
				break
			}
		}
	}
	return string(id), nil
}

// uniqueID draws ids until one is not taken
func uniqueID(gen IDGenerator, taken map[string]struct{}) (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		id, err := gen()
		if err != nil {
			return "", err
		}
		if _, dup := taken[id]; !dup {
			taken[id] = struct{}{}
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique id after 100 attempts")
}
