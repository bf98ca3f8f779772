// Package nlu classifies chat messages into intents and pulls out the
// entities the dialogue engine fills its slots from. Deterministic rules run
// first; embedding similarity against canonical utterances is the fallback.
package nlu

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Domenick1991/airbot/internal/domain"
)

const DefaultMinConfidence = 0.45

type Extractor struct {
	embedder      Embedder
	minConfidence float64
	rules         []rule
	logger        *slog.Logger

	mu        sync.Mutex
	reference map[domain.Intent][][]float64
}

type Option func(*Extractor)

func WithMinConfidence(v float64) Option {
	return func(e *Extractor) {
		if v > 0 {
			e.minConfidence = v
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

func NewExtractor(embedder Embedder, opts ...Option) *Extractor {
	if embedder == nil {
		embedder = NewHashingEmbedder(0)
	}
	e := &Extractor{
		embedder:      embedder,
		minConfidence: DefaultMinConfidence,
		rules:         defaultRules,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify never fails: an unmatched message comes back as IntentUnknown
// with the best similarity seen as its confidence.
func (e *Extractor) Classify(ctx context.Context, text string, hint Hint) domain.Classification {
	result := domain.Classification{
		Intent:   domain.IntentUnknown,
		Entities: ExtractEntities(text),
		Source:   domain.SourceNone,
	}

	u := newUtterance(text)
	if u.text == "" {
		return result
	}

	for _, r := range e.rules {
		if r.match(u, hint) {
			result.Intent = r.intent
			result.Confidence = 1
			result.Margin = 1
			result.Source = domain.SourceRule
			return result
		}
	}

	m, err := e.nearest(ctx, text)
	if err != nil {
		e.logger.WarnContext(ctx, "embedding classification failed", "error", err)
		return result
	}
	result.Confidence = clamp01(m.score)
	if m.score >= e.minConfidence {
		result.Intent = m.intent
		result.Source = domain.SourceEmbedding
		result.Margin = clamp01(m.score - m.runnerUp)
	}
	return result
}

type match struct {
	intent   domain.Intent
	score    float64
	runnerUp float64
}

// nearest scores every intent by its closest canonical utterance. runnerUp
// is the best score among the other intents.
func (e *Extractor) nearest(ctx context.Context, text string) (match, error) {
	m := match{intent: domain.IntentUnknown}
	reference, err := e.referenceEmbeddings(ctx)
	if err != nil {
		return m, err
	}
	vecs, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return m, err
	}
	if len(vecs) == 0 {
		return m, nil
	}

	for _, intent := range intentOrder {
		score := 0.0
		for _, ref := range reference[intent] {
			score = max(score, cosine(vecs[0], ref))
		}
		switch {
		case score > m.score:
			m.runnerUp = m.score
			m.intent, m.score = intent, score
		case score > m.runnerUp:
			m.runnerUp = score
		}
	}
	return m, nil
}

// referenceEmbeddings embeds the canonical utterances once. A failed attempt
// is retried on the next call.
func (e *Extractor) referenceEmbeddings(ctx context.Context) (map[domain.Intent][][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reference != nil {
		return e.reference, nil
	}

	var texts []string
	var owners []domain.Intent
	for _, intent := range intentOrder {
		for _, u := range canonicalUtterances[intent] {
			texts = append(texts, u)
			owners = append(owners, intent)
		}
	}
	vecs, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	ref := make(map[domain.Intent][][]float64, len(intentOrder))
	for i, v := range vecs {
		if i < len(owners) {
			ref[owners[i]] = append(ref[owners[i]], v)
		}
	}
	e.reference = ref
	return ref, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
