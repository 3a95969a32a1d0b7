package cli

import (
	"github.com/spf13/cobra"
)

func newTraceCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "trace PATH FILE...",
		Short: "Show which document set a dotted path",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, err := loadStack(cmd, flags, args[1:])
			if err != nil {
				return err
			}
			_, trace, err := merged.ResolveWithTrace(args[0])
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), trace)
		},
	}
}
