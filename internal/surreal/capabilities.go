package surreal

import (
	"context"
	"strings"
)

// SupportsRemoveAPI probes whether the connected server understands the
// REMOVE API statement. Servers that cannot parse the statement fail at the
// grammar level; any other failure (for example "api does not exist") still
// proves syntax support.
func SupportsRemoveAPI(ctx context.Context, q Querier) (bool, error) {
	err := Exec(ctx, q, "REMOVE API __surrealkit_capability_probe__;", nil)
	if err == nil {
		return true, nil
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unexpected", "parse", "not implemented", "invalid statement"} {
		if strings.Contains(msg, marker) {
			return false, nil
		}
	}
	return true, nil
}
