// Package identity links OCR and classification name candidates to roster
// players. Each candidate/player pair earns up to 70 points for token
// F-score on the full name plus bonuses for team, alternate name, sport,
// and membership of the hinted team's roster. Totals of 40 or more are
// accepted.
package identity
