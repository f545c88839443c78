package ref

import "errors"

// ErrInvalid is returned (wrapped) for references that do not describe a
// well-formed position in the bucket/collection/record hierarchy.
var ErrInvalid = errors.New("invalid resource reference")
