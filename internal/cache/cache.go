// Package cache stores natural-language to SQL translations so repeated
// requests skip the generation call. Lookups are best effort; a cache
// failure never fails a translation.
package cache

import "context"

// TranslationCache maps a normalized request text to a validated SQL
// statement.
type TranslationCache interface {
	Get(ctx context.Context, request string) (string, bool, error)
	Store(ctx context.Context, request, statement string) error
}

// NoopCache satisfies TranslationCache when caching is disabled.
type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (c *NoopCache) Get(ctx context.Context, request string) (string, bool, error) {
	return "", false, nil
}

func (c *NoopCache) Store(ctx context.Context, request, statement string) error {
	return nil
}
