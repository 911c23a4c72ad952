package classification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"

	"cardflow/internal/classification/collectibles"
	"cardflow/internal/logging"
	"cardflow/internal/textutil"
)

// Candidate selection thresholds and scoring bonuses.
const (
	highThreshold     = 0.55
	fallbackThreshold = 0.4
	teamBonus         = 0.1
	setBonus          = 0.05
	snapshotTopN      = 5
)

// Provenance tags for pooled candidates.
const (
	TagBestMatch   = "best_match"
	TagAlternative = "alternative"
	TagSlabLabel   = "slab_label"
	TagTextSearch  = "text_search"
)

// Snapshot sources.
const (
	SourceProvider = "collectibles"
	SourceStub     = "classification_stub"
)

// Selection outcomes.
const (
	SelectedHigh     = "high_confidence"
	SelectedFallback = "fallback"
	SelectedTop      = "top_ranked"
	SelectedNone     = "none"
)

// Provider is the recognition API the aggregator drives.
type Provider interface {
	Configured() bool
	Analyze(ctx context.Context, image []byte) (collectibles.Analysis, error)
	Identify(ctx context.Context, ep collectibles.Endpoint, image []byte, hints collectibles.Hints) (collectibles.Identification, error)
	TextSearch(ctx context.Context, category collectibles.Category, text string) ([]collectibles.Match, error)
}

// Preparer shrinks an image payload to a byte ceiling.
type Preparer interface {
	Fit(data []byte, maxBytes int) ([]byte, error)
}

// Candidate is one pooled identity with its score.
type Candidate struct {
	Name       string   `json:"name"`
	Team       string   `json:"team,omitempty"`
	Set        string   `json:"set,omitempty"`
	Year       string   `json:"year,omitempty"`
	CardNumber string   `json:"card_number,omitempty"`
	Grade      string   `json:"grade,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Provenance string   `json:"provenance"`
	Score      float64  `json:"score"`
}

// Snapshot is the working state of one classification attempt.
type Snapshot struct {
	Source     string      `json:"source"`
	Category   string      `json:"category"`
	Slab       bool        `json:"slab"`
	Endpoint   string      `json:"endpoint,omitempty"`
	Selection  string      `json:"selection"`
	Best       *Candidate  `json:"best,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Degraded   []string    `json:"degraded,omitempty"`
}

// JSON encodes the compact persisted form: the best candidate and the top
// ranked alternatives.
func (s Snapshot) JSON() string {
	compact := s
	if len(compact.Candidates) > snapshotTopN {
		compact.Candidates = compact.Candidates[:snapshotTopN]
	}
	data, err := json.Marshal(compact)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// StubSnapshot is the result when no provider is configured.
func StubSnapshot() Snapshot {
	return Snapshot{
		Source:    SourceStub,
		Category:  string(collectibles.CategoryUnknown),
		Selection: SelectedNone,
	}
}

// Aggregator runs the analyze, identify cascade, and text search flow and
// picks the best candidate. It never fails: provider problems degrade the
// snapshot instead.
type Aggregator struct {
	provider Provider
	preparer Preparer
	maxBytes int
	logger   *slog.Logger
}

// NewAggregator constructs an aggregator. maxBytes bounds every image sent
// to the provider.
func NewAggregator(provider Provider, preparer Preparer, maxBytes int, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		provider: provider,
		preparer: preparer,
		maxBytes: maxBytes,
		logger:   logging.NewComponentLogger(logger, "classification"),
	}
}

// Configured reports whether a real provider backs the aggregator.
func (a *Aggregator) Configured() bool {
	return a.provider != nil && a.provider.Configured()
}

// Classify identifies the card in image, using ocrText as a hint and as the
// scoring target.
func (a *Aggregator) Classify(ctx context.Context, image []byte, ocrText string) Snapshot {
	if !a.Configured() {
		return StubSnapshot()
	}
	logger := logging.WithContext(ctx, a.logger)
	snap := Snapshot{Source: SourceProvider, Category: string(collectibles.CategoryUnknown)}
	category := collectibles.CategoryUnknown

	prepared, err := a.preparer.Fit(image, a.maxBytes)
	if err != nil {
		a.degrade(logger, &snap, "prepare image", err)
		prepared = nil
	}

	var ident collectibles.Identification
	if prepared != nil {
		analysis, err := a.provider.Analyze(ctx, prepared)
		if err != nil {
			a.degrade(logger, &snap, "analyze", err)
		} else {
			category = analysis.Category
			snap.Slab = analysis.Slab
		}
		snap.Category = string(category)
		ident = a.identify(ctx, logger, &snap, category, prepared, ocrText)
	}

	var hits []collectibles.Match
	if strings.TrimSpace(ocrText) != "" {
		hits, err = a.provider.TextSearch(ctx, category, ocrText)
		if err != nil {
			a.degrade(logger, &snap, "text search", err)
		}
	}

	snap.Candidates = rank(pool(ident, hits), ocrText)
	snap.Best, snap.Selection = choose(snap.Candidates)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "classification_complete"),
		logging.String("category", snap.Category),
		logging.Bool("slab", snap.Slab),
		logging.String("endpoint", snap.Endpoint),
		logging.Int("candidates", len(snap.Candidates)),
		logging.String("selection", snap.Selection),
	}
	if snap.Best != nil {
		attrs = append(attrs,
			logging.String("best_name", snap.Best.Name),
			logging.Float64("best_score", snap.Best.Score),
		)
	}
	logger.Info("classification finished", logging.Args(attrs...)...)
	return snap
}

// identify walks the endpoint cascade and stops at the first endpoint that
// recognizes something.
func (a *Aggregator) identify(ctx context.Context, logger *slog.Logger, snap *Snapshot, category collectibles.Category, image []byte, ocrText string) collectibles.Identification {
	hints := collectibles.Hints{SlabGrade: snap.Slab, OCRText: ocrText}
	for _, ep := range collectibles.Cascade(category) {
		ident, err := a.provider.Identify(ctx, ep, image, hints)
		if err != nil {
			if errors.Is(err, collectibles.ErrUnavailable) {
				logger.Debug("endpoint unavailable; trying next",
					logging.String("endpoint", ep.Name),
					logging.Error(err),
				)
				continue
			}
			a.degrade(logger, snap, "identify "+ep.Name, err)
			continue
		}
		if ident.Empty() {
			continue
		}
		snap.Endpoint = ep.Name
		return ident
	}
	return collectibles.Identification{}
}

func (a *Aggregator) degrade(logger *slog.Logger, snap *Snapshot, step string, err error) {
	snap.Degraded = append(snap.Degraded, step)
	logging.WarnWithContext(logger, "classification step failed", "classification_degraded",
		logging.String("step", step),
		logging.Error(err),
		logging.String(logging.FieldProvider, SourceProvider),
		logging.String(logging.FieldImpact, "classification continues with fewer candidates"),
	)
}

func pool(ident collectibles.Identification, hits []collectibles.Match) []Candidate {
	var out []Candidate
	add := func(m collectibles.Match, tag string) {
		name := m.DisplayName()
		if name == "" {
			return
		}
		out = append(out, Candidate{
			Name:       name,
			Team:       strings.TrimSpace(m.Team),
			Set:        strings.TrimSpace(m.Set),
			Year:       strings.TrimSpace(m.Year),
			CardNumber: strings.TrimSpace(m.CardNumber),
			Grade:      strings.TrimSpace(m.Grade),
			Labels:     m.Labels,
			Provenance: tag,
		})
	}
	if ident.Best != nil {
		add(*ident.Best, TagBestMatch)
	}
	for _, alt := range ident.Alternatives {
		add(alt, TagAlternative)
	}
	if ident.SlabLabel != nil {
		add(*ident.SlabLabel, TagSlabLabel)
	}
	for _, hit := range hits {
		add(hit, TagTextSearch)
	}
	return out
}

// rank scores every candidate against the OCR text and sorts descending.
// Ties keep pool order.
func rank(candidates []Candidate, ocrText string) []Candidate {
	ocrTokens := textutil.Tokenize(ocrText)
	lines := ocrLines(ocrText)
	for i := range candidates {
		candidates[i].Score = Score(candidates[i], ocrTokens, lines)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// Score rates a candidate's name against the OCR text: the better of the
// token F-score against the whole text and against any single line, plus
// team and set bonuses, clamped to [0,1].
func Score(c Candidate, ocrTokens []string, lines [][]string) float64 {
	nameTokens := textutil.Tokenize(c.Name)
	name := textutil.FScore(nameTokens, ocrTokens)
	for _, line := range lines {
		name = math.Max(name, textutil.FScore(nameTokens, line))
	}
	total := name
	if textutil.Overlaps(textutil.Tokenize(c.Team), ocrTokens) {
		total += teamBonus
	}
	if textutil.Overlaps(textutil.Tokenize(c.Set), ocrTokens) {
		total += setBonus
	}
	return math.Round(math.Max(0, math.Min(1, total))*1000) / 1000
}

// choose takes the top candidate when it clears the high threshold, else the
// provider's best match when it clears the fallback threshold, else the top
// candidate regardless of score.
func choose(ranked []Candidate) (*Candidate, string) {
	if len(ranked) == 0 {
		return nil, SelectedNone
	}
	if ranked[0].Score >= highThreshold {
		best := ranked[0]
		return &best, SelectedHigh
	}
	for _, c := range ranked {
		if c.Provenance == TagBestMatch && c.Score >= fallbackThreshold {
			best := c
			return &best, SelectedFallback
		}
	}
	best := ranked[0]
	return &best, SelectedTop
}

func ocrLines(text string) [][]string {
	var out [][]string
	for _, line := range strings.Split(text, "\n") {
		if tokens := textutil.Tokenize(line); len(tokens) > 0 {
			out = append(out, tokens)
		}
	}
	return out
}
