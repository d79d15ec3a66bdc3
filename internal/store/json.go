package store

import (
	"encoding/json"

	"go.uber.org/zap"
)

// recoverJSON unmarshals raw into out, logging and leaving out at its
// zero value on failure instead of propagating the error. A read must
// never fail outright because one row's JSON blob got corrupted (spec
// §4.A "never crashes a read", §7 kind 8 malformed data).
func recoverJSON(logger *zap.Logger, field string, raw string, out any) {
	if raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		logger.Warn("corrupt json blob, returning zero value", zap.String("field", field), zap.Error(err))
	}
}
