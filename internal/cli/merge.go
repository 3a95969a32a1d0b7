package cli

import "github.com/spf13/cobra"

func newMergeCommand(flags *rootFlags) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "merge FILE...",
		Short: "Merge documents, weakest first, and print the explicit result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, err := loadStack(cmd, flags, args)
			if err != nil {
				return err
			}
			if full {
				snapshot, err := merged.Snapshot()
				if err != nil {
					return err
				}
				return flags.print(cmd.OutOrStdout(), snapshot)
			}
			doc, err := merged.ExplicitDocument()
			if err != nil {
				return err
			}
			if doc == nil {
				doc = map[string]any{}
			}
			return flags.print(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "print every position instead of the explicit ones")
	return cmd
}
