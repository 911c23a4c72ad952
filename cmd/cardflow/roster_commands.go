package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cardflow/internal/config"
	"cardflow/internal/queue"
)

func newRosterCommand(ctx *commandContext) *cobra.Command {
	rosterCmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage the player roster used for identity matching",
	}
	rosterCmd.AddCommand(newRosterImportCommand(ctx))
	rosterCmd.AddCommand(newRosterTeamsCommand(ctx))
	return rosterCmd
}

func newRosterImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <roster.json>",
		Short: "Import teams and players from a JSON document",
		Long: `Import teams and players from a JSON document of the form

  {"teams":   [{"name": "...", "abbreviation": "...", "sport": "..."}],
   "players": [{"full_name": "...", "team": "...", "sport": "...", "alt_names": ["..."]}]}

Players reference teams by name; unknown teams are created.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read roster: %w", err)
			}
			var roster queue.RosterImport
			if err := json.Unmarshal(data, &roster); err != nil {
				return fmt.Errorf("parse roster: %w", err)
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				teams, players, err := store.ImportRoster(cmd.Context(), roster)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d team(s) and %d player(s)\n", teams, players)
				return nil
			})
		},
	}
}

func newRosterTeamsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List roster teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				teams, err := store.ListTeams(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(teams))
				for _, team := range teams {
					rows = append(rows, []string{fmt.Sprint(team.ID), team.Name, team.Abbreviation, team.Sport})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Team", "Abbr", "Sport"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
}
