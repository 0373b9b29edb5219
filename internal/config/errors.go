package config

import "errors"

var (
	ErrReadFile = errors.New("config: failed to read file")
	ErrParse    = errors.New("config: failed to parse")
	ErrInvalid  = errors.New("config: invalid configuration")
)
