package cmd

import (
	"context"
	"io"
	"os"

	"github.com/habedi/gymctl/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute runs the command line and exits with a status derived from the
// error category.
func Execute(ctx context.Context) {
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command tree with the given arguments and streams and
// returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	st := &cliState{}
	rootCmd := createRootCmd(st)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	defer st.close()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ce := clierr.FromError(err)
		log.Error().Err(err).Str("type", string(ce.Type)).Msg("Command execution failed")
		rootCmd.PrintErrln("Error:", ce.Message)
		return ce.ExitCode()
	}
	return 0
}

func createRootCmd(st *cliState) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gymctl",
		Short:         "A command-line client for the gym workout API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&st.configPath, "config", "c", "", "Path to the configuration file (default ~/.gymctl/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&st.server, "server", "s", "", "API server URL; overrides the configuration file")
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	rootCmd.AddCommand(
		signupCmd(st),
		loginCmd(st),
		logoutCmd(st),
		statusCmd(st),
		groupsCmd(st),
		exercisesCmd(st),
		exerciseCmd(st),
		doneCmd(st),
		historyCmd(st),
		profileCmd(st),
		configCmd(st),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}
