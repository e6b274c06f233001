package entity

import "errors"

var ErrInvalidSeatUpdate = errors.New("invalid seat state update")
