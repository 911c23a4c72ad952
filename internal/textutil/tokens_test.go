package textutil

import (
	"math"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases and splits", "Mike TROUT #27", []string{"mike", "trout", "27"}},
		{"drops single runes", "J. R. Smith", []string{"smith"}},
		{"keeps inner apostrophes", "Shaquille O'Neal", []string{"shaquille", "o'neal"}},
		{"normalizes curly apostrophes", "D’Angelo Russell", []string{"d'angelo", "russell"}},
		{"folds accents", "Ronald Acuña Jr.", []string{"ronald", "acuna", "jr"}},
		{"trims edge apostrophes", "'93 Topps'", []string{"93", "topps"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Tokenize(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFScore(t *testing.T) {
	tests := []struct {
		name      string
		candidate []string
		target    []string
		want      float64
	}{
		{"identical", []string{"mike", "trout"}, []string{"mike", "trout"}, 1},
		{"disjoint", []string{"babe", "ruth"}, []string{"mike", "trout"}, 0},
		{"half overlap", []string{"mike"}, []string{"mike", "trout"}, 2.0 / 3.0},
		{"duplicates count once", []string{"mike", "mike", "trout"}, []string{"mike", "trout"}, 1},
		{"empty candidate", nil, []string{"mike"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FScore(tt.candidate, tt.target)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("FScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlaps(t *testing.T) {
	if !Overlaps([]string{"los", "angeles", "angels"}, []string{"angels"}) {
		t.Fatal("expected overlap")
	}
	if Overlaps([]string{"yankees"}, []string{"red", "sox"}) {
		t.Fatal("expected no overlap")
	}
	if Overlaps(nil, []string{"sox"}) {
		t.Fatal("expected no overlap for empty input")
	}
}
