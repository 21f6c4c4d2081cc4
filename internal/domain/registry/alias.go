package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAlias is returned when an input is neither a canonical model
// id nor a known alias.
var ErrUnknownAlias = errors.New("unknown model alias")

// rootOwnerPrefix is stripped when deriving aliases from canonical ids.
const rootOwnerPrefix = "fal-ai/"

// IsCanonicalID reports whether input is a canonical model id rather than
// an alias. Canonical ids are namespaced with "/". Ids that merely look
// canonical are not validated here; the execution call validates them.
func IsCanonicalID(input string) bool {
	return strings.Contains(input, "/")
}

// resolveIn resolves input against the given snapshot. Canonical inputs
// pass through unchanged without a lookup.
func resolveIn(snapshot *Snapshot, input string) (string, error) {
	if IsCanonicalID(input) {
		return input, nil
	}
	if id, ok := snapshot.Aliases[input]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownAlias, input)
}

// GenerateAlias derives a caller-friendly alias from a canonical id by
// stripping the root owner prefix and flattening separators. Returns ""
// for ids outside the root owner namespace.
func GenerateAlias(id string) string {
	if !strings.HasPrefix(id, rootOwnerPrefix) {
		return ""
	}
	name := strings.TrimPrefix(id, rootOwnerPrefix)
	return strings.NewReplacer("/", "_", "-", "_").Replace(name)
}
