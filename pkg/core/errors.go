package core

import "github.com/go-faster/errors"

var ErrEntityNotFound = errors.New("entity not found")
var ErrInvalidAddress = errors.New("invalid address")
var ErrInvalidTarget = errors.New("invalid move target")
var ErrInvalidContent = errors.New("invalid content")
var ErrMalformedEffects = errors.New("malformed effects")
