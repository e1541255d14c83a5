package controlapi

import "context"

// StaticToken is a TokenSource returning a fixed credential.
type StaticToken string

// Token implements monitoring.TokenSource.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }
