package main

import (
	"github.com/spf13/cobra"

	"dg-agenda/internal/model"
)

// NewRootCmd constructs the CLI; exposed for tests.
func NewRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "agenda",
		Short:         "Director-general appointment agenda",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "Enable debug logging")

	root.AddCommand(newLoginCmd(a), newLogoutCmd(a), newWhoamiCmd(a))

	sec := &cobra.Command{
		Use:               "secretary",
		Short:             "Manage appointments",
		PersistentPreRunE: a.gate(model.RoleSecretary),
	}
	sec.AddCommand(
		newListCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newWatchCmd(a),
	)

	dir := &cobra.Command{
		Use:               "director",
		Short:             "Review appointments",
		PersistentPreRunE: a.gate(model.RoleDirector),
	}
	dir.AddCommand(
		newListCmd(a),
		newStatusCmd(a),
		newStatsCmd(a),
		newWatchCmd(a),
	)

	root.AddCommand(sec, dir)
	return root
}
