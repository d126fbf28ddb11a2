package crypto

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SecureFieldHash previews a byte slice holding sensitive material — a
// sealed body, a public key, a token — for log fields without ever
// logging the material itself: just its length and first 8 bytes.
func SecureFieldHash(data []byte, name string) logrus.Fields {
	preview := "nil"
	if len(data) > 0 {
		previewLen := 8
		if len(data) < previewLen {
			previewLen = len(data)
		}
		preview = fmt.Sprintf("%x", data[:previewLen])
		if len(data) > previewLen {
			preview += "..."
		}
	}

	return logrus.Fields{
		name + "_preview": preview,
		name + "_size":    len(data),
	}
}

// OperationFields builds standardized fields for logging the outcome of a
// named operation (a query round-trip, a seal/open, a rotation).
func OperationFields(operation, status string, additional ...logrus.Fields) logrus.Fields {
	fields := logrus.Fields{
		"operation": operation,
		"status":    status,
	}

	for _, extra := range additional {
		for k, v := range extra {
			fields[k] = v
		}
	}

	return fields
}
