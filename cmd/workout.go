package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/habedi/gymctl/gym"
	"github.com/habedi/gymctl/pkg/pool"
	"github.com/habedi/gymctl/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func groupsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List the muscle groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.loadSignedIn(cmd.Context())
			if err != nil {
				return err
			}
			groups, err := a.gym.Groups(cmd.Context())
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				cmd.Println("No groups found.")
				return nil
			}
			for _, g := range groups {
				cmd.Println(g)
			}
			return nil
		},
	}
}

func exercisesCmd(st *cliState) *cobra.Command {
	var all bool
	var workers int

	cmd := &cobra.Command{
		Use:   "exercises [group]",
		Short: "List the exercises of a group",
		Long:  "List the exercises of a group. Without a group the first one is shown; --all fetches every group concurrently.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) == 1 {
				return validationErr(errors.New("a group and --all cannot be combined"))
			}
			a, err := st.loadSignedIn(cmd.Context())
			if err != nil {
				return err
			}
			if workers == 0 {
				workers = a.cfg.Concurrency
			}
			if err := validationErr(validation.ValidateConcurrency(workers)); err != nil {
				return err
			}

			var groups []string
			if len(args) == 1 {
				groups = args
			} else {
				if groups, err = a.gym.Groups(cmd.Context()); err != nil {
					return err
				}
				if len(groups) == 0 {
					cmd.Println("No groups found.")
					return nil
				}
				if !all {
					groups = groups[:1]
				}
			}

			results := fetchGroups(cmd, a.gym, groups, workers)
			failed := pool.Errors(results)
			if len(failed) == len(results) {
				return failed[0]
			}

			table := newTable(cmd, "Group", "ID", "Name", "Series", "Repetitions")
			rows := 0
			for _, r := range results {
				if r.Err != nil {
					cmd.PrintErrf("Warning: could not fetch group %s: %v\n", r.Item, r.Err)
					continue
				}
				for _, ex := range r.Value {
					table.Append([]string{r.Item, strconv.Itoa(ex.ID), ex.Name, strconv.Itoa(ex.Series), ex.Repetitions})
					rows++
				}
			}
			if len(failed) > 0 {
				cmd.PrintErrf("Warning: %d of %d groups could not be fetched.\n", len(failed), len(results))
			}
			if rows == 0 {
				cmd.Println("No exercises found.")
				return nil
			}
			table.Render()
			log.Info().Int("groups", len(results)).Int("exercises", rows).Msg("Listed exercises")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "List the exercises of every group")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of groups fetched concurrently (default from config)")
	return cmd
}

// fetchGroups loads several groups, showing progress when there is more than one.
func fetchGroups(cmd *cobra.Command, api *gym.API, groups []string, workers int) []pool.Result[string, []gym.Exercise] {
	if len(groups) == 1 {
		return api.ExercisesForGroups(cmd.Context(), groups, 1, nil)
	}
	bar := progressbar.NewOptions(len(groups),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Fetching exercises..."),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	results := api.ExercisesForGroups(cmd.Context(), groups, workers, func(string) { _ = bar.Add(1) })
	_ = bar.Finish()
	return results
}

// parseExerciseID converts a command argument into a valid exercise ID.
func parseExerciseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, validationErr(fmt.Errorf("invalid exercise ID %q", arg))
	}
	return id, validationErr(validation.ValidateExerciseID(id))
}

func exerciseCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "exercise <id>",
		Short: "Show the details of an exercise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExerciseID(args[0])
			if err != nil {
				return err
			}
			a, err := st.loadSignedIn(cmd.Context())
			if err != nil {
				return err
			}
			ex, err := a.gym.Exercise(cmd.Context(), id)
			if err != nil {
				return err
			}
			cmd.Printf("ID: %d\n", ex.ID)
			cmd.Printf("Name: %s\n", ex.Name)
			cmd.Printf("Group: %s\n", ex.Group)
			cmd.Printf("Series: %d\n", ex.Series)
			cmd.Printf("Repetitions: %s\n", ex.Repetitions)
			if u := a.gym.DemoURL(*ex); u != "" {
				cmd.Printf("Demo: %s\n", u)
			}
			if u := a.gym.ThumbURL(*ex); u != "" {
				cmd.Printf("Thumbnail: %s\n", u)
			}
			return nil
		},
	}
}

func doneCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark an exercise as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExerciseID(args[0])
			if err != nil {
				return err
			}
			a, err := st.loadSignedIn(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.gym.RegisterExercise(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Printf("Exercise %d registered in your history.\n", id)
			return nil
		},
	}
}

func historyCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the completed exercises",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.loadSignedIn(cmd.Context())
			if err != nil {
				return err
			}
			days, err := a.gym.History(cmd.Context())
			if err != nil {
				return err
			}
			if len(days) == 0 {
				cmd.Println("No exercises registered yet.")
				return nil
			}
			table := newTable(cmd, "Day", "Hour", "Exercise", "Group")
			for _, day := range days {
				for _, e := range day.Data {
					table.Append([]string{day.Title, e.Hour, e.Name, e.Group})
				}
			}
			table.Render()
			return nil
		},
	}
}
