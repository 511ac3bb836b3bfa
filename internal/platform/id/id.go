// Package id generates opaque identifiers for wallet records.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a lowercase base32 rendering of a random UUIDv4.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// NewPrefixedID returns NewID with a type prefix, such as "pay_".
func NewPrefixedID(prefix string) (string, error) {
	value, err := NewID()
	if err != nil {
		return "", err
	}
	return prefix + value, nil
}
