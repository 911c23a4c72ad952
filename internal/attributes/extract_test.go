package attributes_test

import (
	"testing"

	"cardflow/internal/attributes"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want attributes.Attributes
	}{
		{
			name: "baseball rookie",
			text: "1989 Upper Deck\nKen Griffey Jr.\nSeattle Mariners\nOutfield #1\nStar Rookie",
			want: attributes.Attributes{
				PlayerName: "Ken Griffey Jr.",
				Team:       "Seattle Mariners",
				Sport:      "baseball",
				Brand:      "Upper Deck",
				Year:       "1989",
				CardNumber: "1",
				Rookie:     true,
			},
		},
		{
			name: "graded slab",
			text: "PSA GEM MINT 10\n2018 Panini Prizm\nLuka Doncic\nNo. 280",
			want: attributes.Attributes{
				PlayerName: "Luka Doncic",
				Brand:      "Panini Prizm",
				Year:       "2018",
				CardNumber: "280",
				Graded:     true,
				Grade:      "PSA 10",
			},
		},
		{
			name: "accented name with sport hint",
			text: "MLB\nJosé Altuve\nHouston Astros",
			want: attributes.Attributes{
				PlayerName: "José Altuve",
				Team:       "Houston Astros",
				Sport:      "baseball",
			},
		},
		{
			name: "empty",
			text: "  ",
			want: attributes.Attributes{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := attributes.Extract(tc.text)
			if got != tc.want {
				t.Fatalf("Extract() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestJSONRoundTripKeepsFields(t *testing.T) {
	in := attributes.Attributes{PlayerName: "Ken Griffey Jr.", Year: "1989"}
	out, err := attributes.Parse(in.JSON())
	if err != nil || out != in {
		t.Fatalf("Parse(JSON()) = %#v, %v", out, err)
	}
	if got, err := attributes.Parse(""); err != nil || got != (attributes.Attributes{}) {
		t.Fatalf("expected zero value for empty input, got %#v, %v", got, err)
	}
	got, err := attributes.Parse(`{"player_name": 7}`)
	if err == nil {
		t.Fatal("expected decode error for invalid input")
	}
	if got != (attributes.Attributes{}) {
		t.Fatalf("expected zero value for invalid input, got %#v", got)
	}
}
