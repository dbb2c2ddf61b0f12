package sit

import "errors"

var (
	ErrSitNotFound    = errors.New("sit not found")
	ErrSitNotEditable = errors.New("sit is not a draft")
	ErrInvalidSit     = errors.New("invalid sit definition")
)
