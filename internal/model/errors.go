package model

import "errors"

// ErrInvalidSettings is returned by the validated constructors of tenant settings.
var ErrInvalidSettings = errors.New("invalid tenant settings")
