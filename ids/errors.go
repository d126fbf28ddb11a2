package ids

import "errors"

var errInvalidBucket = errors.New("ids: bucket index out of range")
