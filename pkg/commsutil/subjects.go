package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectTransform   = "cap.cipher.transform.v1"
	SubjectTransformed = "cipher.transformed"
	QueueGroup         = "cipher-workers"
)

// BuildTransformedSubject builds a per-algorithm transform event subject.
func BuildTransformedSubject(base, algorithm string) string {
	if base == "" {
		base = SubjectTransformed
	}
	if algorithm == "" {
		algorithm = "unknown"
	}
	return fmt.Sprintf("%s.%s", base, strings.ToLower(algorithm))
}

// BuildCapabilitySubject builds a COMMS subject for a capability.
func BuildCapabilitySubject(app, name string, major int) string {
	safe := strings.ReplaceAll(name, ".", "_")
	return fmt.Sprintf("cap.%s.%s.v%d", app, safe, major)
}
