package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cardflow/internal/services"
	"cardflow/internal/textutil"
)

const rosterSearchLimit = 50

const playerColumns = "p.id, p.full_name, p.team_id, COALESCE(t.name, ''), p.sport, p.alt_names"

// RosterImport is the JSON document accepted by ImportRoster.
type RosterImport struct {
	Teams   []RosterTeam   `json:"teams"`
	Players []RosterPlayer `json:"players"`
}

// RosterTeam is one team entry of a roster import.
type RosterTeam struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Sport        string `json:"sport"`
}

// RosterPlayer is one player entry of a roster import. Team refers to a team
// by name; unknown teams are created.
type RosterPlayer struct {
	FullName string   `json:"full_name"`
	Team     string   `json:"team"`
	Sport    string   `json:"sport"`
	AltNames []string `json:"alt_names"`
}

// ImportRoster inserts teams (skipping names already present) and players in
// one transaction. Players reference teams by name. It returns the number of
// teams and players inserted.
func (s *Store) ImportRoster(ctx context.Context, roster RosterImport) (int, int, error) {
	var teamsAdded, playersAdded int
	err := s.WithinTx(ctx, 0, func(ctx context.Context, tx *Tx) error {
		teamIDs := make(map[string]int64)
		for _, team := range roster.Teams {
			name := strings.TrimSpace(team.Name)
			if name == "" {
				continue
			}
			id, created, err := upsertTeam(ctx, tx.conn, name, team.Abbreviation, team.Sport)
			if err != nil {
				return err
			}
			if created {
				teamsAdded++
			}
			teamIDs[textutil.Fold(name)] = id
		}
		for _, player := range roster.Players {
			fullName := strings.TrimSpace(player.FullName)
			if fullName == "" {
				continue
			}
			var teamID *int64
			if teamName := strings.TrimSpace(player.Team); teamName != "" {
				id, ok := teamIDs[textutil.Fold(teamName)]
				if !ok {
					var err error
					id, _, err = upsertTeam(ctx, tx.conn, teamName, "", player.Sport)
					if err != nil {
						return err
					}
					teamIDs[textutil.Fold(teamName)] = id
				}
				teamID = &id
			}
			if err := insertPlayer(ctx, tx.conn, fullName, teamID, player.Sport, player.AltNames); err != nil {
				return err
			}
			playersAdded++
		}
		return nil
	})
	return teamsAdded, playersAdded, err
}

func upsertTeam(ctx context.Context, c conn, name, abbreviation, sport string) (int64, bool, error) {
	var id int64
	err := c.queryRow(ctx, `SELECT id FROM roster_teams WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("lookup team: %w", err)
	}
	err = c.queryRow(ctx,
		`INSERT INTO roster_teams (name, abbreviation, sport, search_name) VALUES (?, ?, ?, ?) RETURNING id`,
		name, nullableString(abbreviation), nullableString(strings.ToLower(strings.TrimSpace(sport))), searchKey(name),
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("insert team: %w", err)
	}
	return id, true, nil
}

func insertPlayer(ctx context.Context, c conn, fullName string, teamID *int64, sport string, altNames []string) error {
	cleaned := make([]string, 0, len(altNames))
	for _, alt := range altNames {
		if alt = strings.TrimSpace(alt); alt != "" {
			cleaned = append(cleaned, alt)
		}
	}
	var altJSON string
	if len(cleaned) > 0 {
		data, err := json.Marshal(cleaned)
		if err != nil {
			return fmt.Errorf("encode alt names: %w", err)
		}
		altJSON = string(data)
	}
	_, err := c.exec(ctx,
		`INSERT INTO roster_players (full_name, team_id, sport, alt_names, search_name, search_alt)
         VALUES (?, ?, ?, ?, ?, ?)`,
		fullName, nullableInt64(teamID), nullableString(strings.ToLower(strings.TrimSpace(sport))),
		nullableString(altJSON), searchKey(fullName), nullableString(searchKey(strings.Join(cleaned, " "))),
	)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

// searchKey stores names as space-padded folded tokens so token lookups can
// match whole words with LIKE '% token %'.
func searchKey(value string) string {
	tokens := textutil.Tokenize(value)
	if len(tokens) == 0 {
		return ""
	}
	return " " + strings.Join(tokens, " ") + " "
}

// ListTeams returns every roster team.
func (s *Store) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := s.query(ctx, `SELECT id, name, COALESCE(abbreviation, ''), COALESCE(sport, '') FROM roster_teams ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var team Team
		if err := rows.Scan(&team.ID, &team.Name, &team.Abbreviation, &team.Sport); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// PlayersByTeams returns the current roster members of the given teams.
func (s *Store) PlayersByTeams(ctx context.Context, teamIDs []int64) ([]Player, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(teamIDs))
	for i, id := range teamIDs {
		args[i] = id
	}
	return s.queryPlayers(ctx,
		`SELECT `+playerColumns+` FROM roster_players p LEFT JOIN roster_teams t ON t.id = p.team_id
         WHERE p.team_id IN (`+makePlaceholders(len(teamIDs))+`) ORDER BY p.id`,
		args...,
	)
}

// SearchPlayers finds players whose full name equals name, or whose name or
// alternate names contain any token of name as a whole word. Exact full-name
// matches come first, then players sharing more tokens with name, so a common
// token cannot crowd the exact entry out of the result limit.
func (s *Store) SearchPlayers(ctx context.Context, name string) ([]Player, error) {
	tokens := textutil.Tokenize(name)
	if len(tokens) == 0 {
		return nil, nil
	}
	key := searchKey(name)
	clauses := []string{"p.search_name = ?"}
	whereArgs := []any{key}
	hits := make([]string, 0, len(tokens))
	var hitArgs []any
	for _, token := range tokens {
		pattern := "% " + escapeLike(token) + " %"
		clauses = append(clauses, `p.search_name LIKE ? ESCAPE '\'`, `p.search_alt LIKE ? ESCAPE '\'`)
		whereArgs = append(whereArgs, pattern, pattern)
		hits = append(hits, `CASE WHEN p.search_name LIKE ? ESCAPE '\' OR p.search_alt LIKE ? ESCAPE '\' THEN 1 ELSE 0 END`)
		hitArgs = append(hitArgs, pattern, pattern)
	}
	args := append(whereArgs, key)
	args = append(args, hitArgs...)
	args = append(args, rosterSearchLimit)
	return s.queryPlayers(ctx,
		`SELECT `+playerColumns+` FROM roster_players p LEFT JOIN roster_teams t ON t.id = p.team_id
         WHERE `+strings.Join(clauses, " OR ")+`
         ORDER BY CASE WHEN p.search_name = ? THEN 0 ELSE 1 END, (`+strings.Join(hits, " + ")+`) DESC, p.id
         LIMIT ?`,
		args...,
	)
}

func (s *Store) queryPlayers(ctx context.Context, query string, args ...any) ([]Player, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "query roster", "roster lookup failed", err)
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var (
			player   Player
			teamID   sql.NullInt64
			sport    sql.NullString
			altNames sql.NullString
		)
		if err := rows.Scan(&player.ID, &player.FullName, &teamID, &player.TeamName, &sport, &altNames); err != nil {
			return nil, err
		}
		if teamID.Valid {
			id := teamID.Int64
			player.TeamID = &id
		}
		player.Sport = sport.String
		if altNames.String != "" {
			if err := json.Unmarshal([]byte(altNames.String), &player.AltNames); err != nil {
				return nil, services.Wrap(services.ErrValidation, "store", "query roster",
					fmt.Sprintf("alternate names of player %d are corrupt", player.ID), err)
			}
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
