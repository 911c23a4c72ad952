package attributes

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"cardflow/internal/textutil"
)

// Attributes are the structured fields derived from a card's OCR text.
type Attributes struct {
	PlayerName string `json:"player_name,omitempty"`
	Team       string `json:"team,omitempty"`
	Sport      string `json:"sport,omitempty"`
	Brand      string `json:"brand,omitempty"`
	Year       string `json:"year,omitempty"`
	CardNumber string `json:"card_number,omitempty"`
	Rookie     bool   `json:"rookie,omitempty"`
	Graded     bool   `json:"graded,omitempty"`
	Grade      string `json:"grade,omitempty"`
}

// JSON encodes the attributes for persistence.
func (a Attributes) JSON() string {
	data, err := json.Marshal(a)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Parse decodes persisted attributes. Empty input is the zero value; invalid
// input also yields the zero value along with the decode error.
func Parse(raw string) (Attributes, error) {
	var a Attributes
	if strings.TrimSpace(raw) == "" {
		return a, nil
	}
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Attributes{}, fmt.Errorf("decode attributes: %w", err)
	}
	return a, nil
}

var (
	yearPattern   = regexp.MustCompile(`\b(19[0-9]{2}|20[0-4][0-9])\b`)
	numberPattern = regexp.MustCompile(`(?i)(?:#|\bno\.?\s*|\bcard\s+)([a-z]{0,4}-?[0-9]{1,4}[a-z]?)\b`)
	gradePattern  = regexp.MustCompile(`(?i)\b(psa|bgs|sgc|cgc)\s*(?:gem\s*mint\s*|mint\s*|nm-mt\s*)?([0-9]{1,2}(?:\.5)?)\b`)
	rookiePattern = regexp.MustCompile(`(?i)\b(rookie|rc)\b`)
)

// Extract applies text heuristics to OCR output.
func Extract(text string) Attributes {
	var a Attributes
	text = strings.TrimSpace(text)
	if text == "" {
		return a
	}
	folded := textutil.Fold(text)

	if m := yearPattern.FindString(text); m != "" {
		a.Year = m
	}
	if m := numberPattern.FindStringSubmatch(text); len(m) > 1 {
		a.CardNumber = strings.ToUpper(m[1])
	}
	if m := gradePattern.FindStringSubmatch(text); len(m) > 2 {
		a.Graded = true
		a.Grade = strings.ToUpper(m[1]) + " " + m[2]
	}
	a.Rookie = rookiePattern.MatchString(text)
	a.Brand = matchPhrase(folded, brands)

	if team, sport := matchTeam(folded); team != "" {
		a.Team = team
		a.Sport = sport
	}
	if a.Sport == "" {
		a.Sport = matchSport(folded)
	}
	a.PlayerName = playerName(text)
	return a
}

// matchPhrase returns the canonical entry whose folded phrase appears in
// folded text as whole words.
func matchPhrase(folded string, entries []phrase) string {
	padded := " " + strings.Join(textutil.Tokenize(folded), " ") + " "
	for _, entry := range entries {
		if strings.Contains(padded, " "+entry.match+" ") {
			return entry.canonical
		}
	}
	return ""
}

func matchTeam(folded string) (string, string) {
	padded := " " + strings.Join(textutil.Tokenize(folded), " ") + " "
	for _, team := range teams {
		if strings.Contains(padded, " "+team.match+" ") {
			return team.canonical, team.sport
		}
	}
	return "", ""
}

func matchSport(folded string) string {
	tokens := textutil.TokenSet(folded)
	for _, hint := range sportHints {
		if _, ok := tokens[hint.token]; ok {
			return hint.sport
		}
	}
	return ""
}

// playerName picks the first line shaped like a person's name: two to four
// capitalized words with no digits that are not a brand, team, or card term.
func playerName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.IndexFunc(line, unicode.IsDigit) >= 0 {
			continue
		}
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 4 {
			continue
		}
		if !allNameWords(words) {
			continue
		}
		folded := textutil.Fold(line)
		if matchPhrase(folded, brands) != "" {
			continue
		}
		if team, _ := matchTeam(folded); team != "" {
			continue
		}
		if containsStopWord(folded) {
			continue
		}
		return line
	}
	return ""
}

func allNameWords(words []string) bool {
	for _, word := range words {
		trimmed := strings.Trim(word, ".,'")
		if trimmed == "" {
			return false
		}
		runes := []rune(trimmed)
		if !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes {
			if !unicode.IsLetter(r) && r != '\'' && r != '-' && r != '.' {
				return false
			}
		}
	}
	return true
}

func containsStopWord(folded string) bool {
	for _, token := range textutil.Tokenize(folded) {
		if _, ok := stopWords[token]; ok {
			return true
		}
	}
	return false
}
