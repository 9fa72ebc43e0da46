package storagekey

import "errors"

var ErrEmptyInput = errors.New("storagekey: empty input")
