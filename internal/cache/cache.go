// Package cache holds JSON values for read paths whose records never change
// after creation, such as a stored analysis.
package cache

import (
	"context"
	"fmt"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelPrefix removes every key starting with prefix.
	DelPrefix(ctx context.Context, prefix string) error
}

const AnalysisTTL = 10 * time.Minute

// AnalysisPrefix scopes keys by backend. Only database ids are stable across
// processes, so callers cache under the database prefix alone.
func AnalysisPrefix(storage string) string {
	return "analysis:" + storage + ":"
}

func AnalysisKey(storage string, id int64) string {
	return fmt.Sprintf("%s%d", AnalysisPrefix(storage), id)
}
