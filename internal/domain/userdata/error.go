package userdata

import "errors"

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoShards         = errors.New("no shard endpoints configured")
	ErrAuthFailed       = errors.New("authentication failed")
)
