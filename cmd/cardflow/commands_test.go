package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddValidatesInput(t *testing.T) {
	env := setupCLITestEnv(t)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no batch", []string{"add", "a.jpg"}, "either --batch or --to-batch is required"},
		{"both targets", []string{"add", "--batch", "Binder", "--to-batch", "3", "a.jpg"}, "cannot be combined"},
		{"blank image", []string{"add", "--batch", "Binder", " "}, "image reference"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCLI(t, tc.args, env.configPath)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			requireContains(t, err.Error(), tc.want)
		})
	}
}

func TestAddRunOnceAndInspect(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeImage(t, "front.jpg")
	env.writeImage(t, "back.jpg")

	out, _, err := runCLI(t, []string{"add", "--batch", "Binder", "front.jpg"}, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Created batch 1 (Binder) with 1 asset(s)")

	out, _, err = runCLI(t, []string{"add", "--to-batch", "1", "back.jpg"}, env.configPath)
	if err != nil {
		t.Fatalf("add to batch: %v", err)
	}
	requireContains(t, out, "Queued asset 2 (back.jpg) in batch 1")

	out, _, err = runCLI(t, []string{"jobs", "list", "--status", "queued"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "OCR")

	out, _, err = runCLI(t, []string{"run", "--once"}, env.configPath)
	if err != nil {
		t.Fatalf("run --once: %v", err)
	}
	requireContains(t, out, "Processed 4 job(s)")

	out, _, err = runCLI(t, []string{"batch", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("batch list: %v", err)
	}
	requireContains(t, out, "READY")
	requireContains(t, out, "2/2")

	out, _, err = runCLI(t, []string{"batch", "show", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("batch show: %v", err)
	}
	requireContains(t, out, "front.jpg")
	requireContains(t, out, "0.00 USD")

	target := filepath.Join(t.TempDir(), "report.xlsx")
	out, _, err = runCLI(t, []string{"batch", "export", "1", "--output", target}, env.configPath)
	if err != nil {
		t.Fatalf("batch export: %v", err)
	}
	requireContains(t, out, "Wrote "+target)
	if info, err := os.Stat(target); err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty export, got %v %v", info, err)
	}

	out, err = runCLIExpectError(t, []string{"retry", "1"}, env.configPath)
	if err == nil {
		t.Fatal("expected retry of a READY asset to fail")
	}
	requireContains(t, out, "Asset 1 is not in ERROR; skipped")
}

func TestRosterImportAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	rosterPath := filepath.Join(t.TempDir(), "roster.json")
	roster := `{"teams":[{"name":"Seattle Mariners","abbreviation":"SEA","sport":"baseball"}],
"players":[{"full_name":"Ken Griffey Jr.","team":"Seattle Mariners","sport":"baseball","alt_names":["The Kid"]}]}`
	if err := os.WriteFile(rosterPath, []byte(roster), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	out, _, err := runCLI(t, []string{"roster", "import", rosterPath}, env.configPath)
	if err != nil {
		t.Fatalf("roster import: %v", err)
	}
	requireContains(t, out, "Imported 1 team(s) and 1 player(s)")

	out, _, err = runCLI(t, []string{"roster", "teams"}, env.configPath)
	if err != nil {
		t.Fatalf("roster teams: %v", err)
	}
	requireContains(t, out, "Seattle Mariners")

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "stub mode")
	requireContains(t, out, "Jobs QUEUED")
}

func runCLIExpectError(t *testing.T, args []string, configPath string) (string, error) {
	t.Helper()
	out, _, err := runCLI(t, args, configPath)
	return out, err
}
