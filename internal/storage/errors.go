package storage

import "errors"

// ErrNotFound is returned when a decision targets a pending record that is
// not in the pending set: either it never existed or it was already
// committed. Concurrent duplicate decisions surface it to the loser.
var ErrNotFound = errors.New("record not found")
