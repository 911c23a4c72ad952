package attributes

type phrase struct {
	match     string
	canonical string
}

type teamEntry struct {
	match     string
	canonical string
	sport     string
}

type sportHint struct {
	token string
	sport string
}

var brands = []phrase{
	{"upper deck", "Upper Deck"},
	{"topps chrome", "Topps Chrome"},
	{"topps", "Topps"},
	{"bowman", "Bowman"},
	{"panini prizm", "Panini Prizm"},
	{"prizm", "Panini Prizm"},
	{"panini", "Panini"},
	{"donruss", "Donruss"},
	{"fleer", "Fleer"},
	{"score", "Score"},
	{"leaf", "Leaf"},
	{"select", "Select"},
	{"optic", "Optic"},
	{"pokemon", "Pokemon"},
	{"magic the gathering", "Magic: The Gathering"},
	{"yu gi oh", "Yu-Gi-Oh!"},
	{"marvel", "Marvel"},
}

var teams = []teamEntry{
	{"red sox", "Boston Red Sox", "baseball"},
	{"white sox", "Chicago White Sox", "baseball"},
	{"yankees", "New York Yankees", "baseball"},
	{"mets", "New York Mets", "baseball"},
	{"mariners", "Seattle Mariners", "baseball"},
	{"dodgers", "Los Angeles Dodgers", "baseball"},
	{"cubs", "Chicago Cubs", "baseball"},
	{"braves", "Atlanta Braves", "baseball"},
	{"giants", "San Francisco Giants", "baseball"},
	{"cardinals", "St. Louis Cardinals", "baseball"},
	{"angels", "Los Angeles Angels", "baseball"},
	{"astros", "Houston Astros", "baseball"},
	{"lakers", "Los Angeles Lakers", "basketball"},
	{"celtics", "Boston Celtics", "basketball"},
	{"bulls", "Chicago Bulls", "basketball"},
	{"warriors", "Golden State Warriors", "basketball"},
	{"knicks", "New York Knicks", "basketball"},
	{"heat", "Miami Heat", "basketball"},
	{"patriots", "New England Patriots", "football"},
	{"cowboys", "Dallas Cowboys", "football"},
	{"packers", "Green Bay Packers", "football"},
	{"steelers", "Pittsburgh Steelers", "football"},
	{"chiefs", "Kansas City Chiefs", "football"},
	{"49ers", "San Francisco 49ers", "football"},
	{"maple leafs", "Toronto Maple Leafs", "hockey"},
	{"canadiens", "Montreal Canadiens", "hockey"},
	{"oilers", "Edmonton Oilers", "hockey"},
	{"penguins", "Pittsburgh Penguins", "hockey"},
	{"bruins", "Boston Bruins", "hockey"},
}

var sportHints = []sportHint{
	{"mlb", "baseball"},
	{"baseball", "baseball"},
	{"nba", "basketball"},
	{"basketball", "basketball"},
	{"nfl", "football"},
	{"football", "football"},
	{"nhl", "hockey"},
	{"hockey", "hockey"},
	{"fifa", "soccer"},
	{"soccer", "soccer"},
	{"pokemon", "tcg"},
	{"hp", "tcg"},
}

// stopWords rule out lines that name card features rather than a person.
var stopWords = map[string]struct{}{
	"rookie": {}, "card": {}, "edition": {}, "series": {}, "set": {}, "base": {},
	"parallel": {}, "refractor": {}, "autograph": {}, "auto": {}, "insert": {},
	"trading": {}, "collection": {}, "limited": {}, "gem": {}, "mint": {},
	"league": {}, "baseball": {}, "basketball": {}, "football": {}, "hockey": {},
	"pitcher": {}, "outfield": {}, "outfielder": {}, "infielder": {}, "catcher": {},
	"quarterback": {}, "forward": {}, "guard": {}, "center": {}, "goalie": {},
}
