// Package attributes derives structured card fields (player, team, sport,
// brand, year, card number, grade) from OCR text using lightweight text
// heuristics.
package attributes
