package util

import "github.com/google/uuid"

// NewID returns a fresh identifier, optionally namespaced with a prefix
// such as "song" or "svc".
func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
