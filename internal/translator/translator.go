// Package translator turns natural-language questions about the
// reference schema into validated SELECT statements. Every candidate
// statement passes the catalog allow-list before it is returned or
// cached; the generation model is never trusted.
package translator

import (
	"context"
	"fmt"
	"strings"

	"promosms/internal/cache"
	"promosms/internal/constants"
	"promosms/internal/errors"
	"promosms/internal/schema"
	"promosms/internal/validation"
	"promosms/pkg/textgen"

	"github.com/sirupsen/logrus"
)

const systemPromptTemplate = `You are a SQL generator for a read-only reporting database (SQLite dialect).
Generate exactly one SELECT statement answering the user's question.

Schema:
%s

Rules:
- Output only the SQL statement, no explanation and no markdown.
- Use only the tables and columns listed above.
- Never modify data; SELECT statements only.
- Prefer explicit column lists over SELECT *.`

type Translator struct {
	catalog    *schema.Catalog
	generator  textgen.Client
	cache      cache.TranslationCache
	logger     *logrus.Logger
	maxRequest int
}

func New(catalog *schema.Catalog, generator textgen.Client, translationCache cache.TranslationCache, maxRequestLength int, logger *logrus.Logger) *Translator {
	if translationCache == nil {
		translationCache = cache.NewNoopCache()
	}
	if maxRequestLength <= 0 {
		maxRequestLength = constants.MaxQueryRequestLength
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &Translator{
		catalog:    catalog,
		generator:  generator,
		cache:      translationCache,
		logger:     logger,
		maxRequest: maxRequestLength,
	}
}

// Translate produces a validated SELECT statement for a free-text
// request. A generation failure surfaces as TRANSLATION_UNAVAILABLE; a
// statement that fails the allow-list surfaces as TRANSLATION_REJECTED.
// Cached translations were validated when stored and are revalidated on
// read so a catalog change invalidates stale entries.
func (t *Translator) Translate(ctx context.Context, request string) (string, error) {
	if err := validation.ValidateQueryRequest(request, t.maxRequest); err != nil {
		return "", err
	}

	if cached, found, err := t.cache.Get(ctx, request); err != nil {
		t.logger.WithError(err).Warn("Translation cache lookup failed")
	} else if found {
		if err := t.catalog.ValidateStatement(cached); err == nil {
			t.logger.WithField("statement", cached).Debug("Translation cache hit")
			return cached, nil
		}
	}

	systemPrompt := fmt.Sprintf(systemPromptTemplate, t.catalog.PromptVocabulary())

	raw, err := t.generator.Complete(ctx, systemPrompt, request)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeTranslationUnavailable, "text generation failed")
	}

	statement := stripFences(raw)

	if err := t.catalog.ValidateStatement(statement); err != nil {
		t.logger.WithFields(logrus.Fields{
			"statement": statement,
			"reason":    err.Error(),
		}).Warn("Generated statement rejected")
		return "", err
	}

	if err := t.cache.Store(ctx, request, statement); err != nil {
		t.logger.WithError(err).Warn("Translation cache store failed")
	}

	return statement, nil
}

// stripFences removes markdown code fencing that generation models wrap
// around SQL despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```SQL")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}

	return strings.TrimSpace(s)
}
