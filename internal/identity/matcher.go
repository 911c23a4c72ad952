package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"

	"cardflow/internal/logging"
	"cardflow/internal/queue"
	"cardflow/internal/textutil"
)

// Scoring weights in points out of 100.
const (
	namePoints       = 70.0
	teamBonus        = 20.0
	aliasBonus       = 10.0
	sportBonus       = 5.0
	rosterBonus      = 10.0
	maxScore         = 100.0
	acceptThreshold  = 40.0
	teamMatchMinimum = 0.5
	minLabelWords    = 2
	maxLabelWords    = 4
)

// Roster is the reference data the matcher scores against.
type Roster interface {
	ListTeams(ctx context.Context) ([]queue.Team, error)
	PlayersByTeams(ctx context.Context, teamIDs []int64) ([]queue.Player, error)
	SearchPlayers(ctx context.Context, name string) ([]queue.Player, error)
}

// Input carries the name candidates and contextual hints for one card.
type Input struct {
	Names     []string
	TeamHint  string
	SportHint string
}

// Breakdown records the points each rule contributed to the winning score.
type Breakdown struct {
	Name   float64 `json:"name"`
	Team   float64 `json:"team"`
	Alias  float64 `json:"alias"`
	Sport  float64 `json:"sport"`
	Roster float64 `json:"roster"`
}

// Result is the outcome of a match. PlayerID is set only when Accepted;
// PlayerName and TeamName carry the best guess either way.
type Result struct {
	Accepted   bool      `json:"accepted"`
	PlayerID   *int64    `json:"player_id,omitempty"`
	PlayerName string    `json:"player_name,omitempty"`
	TeamName   string    `json:"team_name,omitempty"`
	Candidate  string    `json:"candidate,omitempty"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Breakdown  Breakdown `json:"breakdown"`
}

// JSON encodes the result as the persisted match snapshot.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Matcher resolves name candidates to roster entries.
type Matcher struct {
	roster Roster
	logger *slog.Logger
}

// NewMatcher constructs a matcher backed by roster.
func NewMatcher(roster Roster, logger *slog.Logger) *Matcher {
	return &Matcher{roster: roster, logger: logging.NewComponentLogger(logger, "identity")}
}

// Match scores every candidate name against the bounded roster search space
// and returns the best pair. Roster lookup failures are returned; an empty
// search space yields a zero Result.
func (m *Matcher) Match(ctx context.Context, input Input) (Result, error) {
	logger := logging.WithContext(ctx, m.logger)
	names := dedupeNames(input.Names)
	if len(names) == 0 {
		return Result{}, nil
	}

	hinted, err := m.hintedTeams(ctx, input.TeamHint)
	if err != nil {
		return Result{}, err
	}
	members, err := m.roster.PlayersByTeams(ctx, hinted)
	if err != nil {
		return Result{}, err
	}
	rosterIDs := make(map[int64]struct{}, len(members))
	pool := make([]queue.Player, 0, len(members))
	seen := make(map[int64]struct{}, len(members))
	for _, player := range members {
		rosterIDs[player.ID] = struct{}{}
		seen[player.ID] = struct{}{}
		pool = append(pool, player)
	}
	for _, name := range names {
		found, err := m.roster.SearchPlayers(ctx, name)
		if err != nil {
			return Result{}, err
		}
		for _, player := range found {
			if _, ok := seen[player.ID]; ok {
				continue
			}
			seen[player.ID] = struct{}{}
			pool = append(pool, player)
		}
	}
	if len(pool) == 0 {
		logger.Debug("identity search space empty",
			logging.Int("candidates", len(names)),
			logging.String("team_hint", input.TeamHint),
		)
		return Result{}, nil
	}

	teamTokens := textutil.Tokenize(input.TeamHint)
	sport := textutil.Fold(strings.TrimSpace(input.SportHint))

	var (
		best     Result
		bestSeen bool
	)
	for _, name := range names {
		candidateTokens := textutil.Tokenize(name)
		for _, player := range pool {
			_, onRoster := rosterIDs[player.ID]
			breakdown := score(candidateTokens, teamTokens, sport, player, onRoster)
			total := clamp(breakdown.Name + breakdown.Team + breakdown.Alias + breakdown.Sport + breakdown.Roster)
			if bestSeen && total <= best.Score {
				continue
			}
			bestSeen = true
			id := player.ID
			best = Result{
				PlayerID:   &id,
				PlayerName: player.FullName,
				TeamName:   player.TeamName,
				Candidate:  name,
				Score:      total,
				Breakdown:  breakdown,
			}
		}
	}

	best.Accepted = best.Score >= acceptThreshold
	if best.Accepted {
		best.Confidence = math.Round(best.Score/maxScore*100) / 100
	} else {
		best.PlayerID = nil
		best.Confidence = 0
	}

	logger.Info("identity match scored",
		logging.String(logging.FieldEventType, "identity_match"),
		logging.Int("search_space", len(pool)),
		logging.Int("roster_members", len(members)),
		logging.String("candidate", best.Candidate),
		logging.String("player_name", best.PlayerName),
		logging.Float64("score", best.Score),
		logging.Bool("accepted", best.Accepted),
	)
	return best, nil
}

// hintedTeams resolves the team hint to roster team ids by fuzzy name or
// exact abbreviation.
func (m *Matcher) hintedTeams(ctx context.Context, hint string) ([]int64, error) {
	hintTokens := textutil.Tokenize(hint)
	if len(hintTokens) == 0 {
		return nil, nil
	}
	teams, err := m.roster.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	foldedHint := textutil.Fold(strings.TrimSpace(hint))
	var ids []int64
	for _, team := range teams {
		if abbr := textutil.Fold(strings.TrimSpace(team.Abbreviation)); abbr != "" && abbr == foldedHint {
			ids = append(ids, team.ID)
			continue
		}
		if textutil.FScore(hintTokens, textutil.Tokenize(team.Name)) >= teamMatchMinimum {
			ids = append(ids, team.ID)
		}
	}
	return ids, nil
}

func score(candidate, teamTokens []string, sport string, player queue.Player, onRoster bool) Breakdown {
	var b Breakdown
	b.Name = textutil.FScore(candidate, textutil.Tokenize(player.FullName)) * namePoints
	if textutil.Overlaps(teamTokens, textutil.Tokenize(player.TeamName)) {
		b.Team = teamBonus
	}
	if len(player.AltNames) > 0 && textutil.Overlaps(candidate, textutil.Tokenize(strings.Join(player.AltNames, " "))) {
		b.Alias = aliasBonus
	}
	if sport != "" && player.Sport != "" && textutil.Fold(player.Sport) == sport {
		b.Sport = sportBonus
	}
	if onRoster {
		b.Roster = rosterBonus
	}
	return b
}

// clamp bounds total to [0,100] at two decimal places so float noise never
// moves a score across the acceptance threshold.
func clamp(total float64) float64 {
	total = math.Round(total*100) / 100
	return math.Max(0, math.Min(maxScore, total))
}

func dedupeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.Join(textutil.Tokenize(name), " ")
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ShortLabels keeps labels of two to four words, the shape of a person's
// name, from classification tags.
func ShortLabels(labels []string) []string {
	var out []string
	for _, label := range labels {
		words := strings.Fields(label)
		if len(words) >= minLabelWords && len(words) <= maxLabelWords {
			out = append(out, strings.TrimSpace(label))
		}
	}
	return out
}
