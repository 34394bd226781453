package repositories

import "errors"

// ErrNotFound is returned (optionally wrapped) when a requested entity does not exist
var ErrNotFound = errors.New("not found")
