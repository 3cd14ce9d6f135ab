// Package answer implements retrieval-grounded question answering over a
// built passage index.
package answer

import (
	"context"
	"errors"
)

// ChatBackend generates an answer from a system instruction and a user
// prompt. Implementations draw credentials from the shared pool per call,
// so a retried call naturally rotates to a different credential.
type ChatBackend interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Provider() string
}

var errTransientChat = errors.New("transient chat failure")

// IsTransient reports whether a generation error is worth one more
// attempt with a rotated credential.
func IsTransient(err error) bool { return errors.Is(err, errTransientChat) }
