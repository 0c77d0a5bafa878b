// Package tokenstore persists the console's session tokens between runs.
package tokenstore

import (
	"context"
	"errors"
)

// ErrCorrupt means the persisted data exists but cannot be decoded. It is
// not an I/O failure; callers may discard the data and start over.
var ErrCorrupt = errors.New("token store corrupt")

// Keys under which the tokens are persisted.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// Tokens is the persisted pair. Either field may be empty.
type Tokens struct {
	Access  string
	Refresh string
}

func (t Tokens) Empty() bool {
	return t.Access == "" && t.Refresh == ""
}

type Store interface {
	Load(ctx context.Context) (Tokens, error)
	// Save replaces both entries. Empty fields remove their entry.
	Save(ctx context.Context, tokens Tokens) error
	Clear(ctx context.Context) error
}
