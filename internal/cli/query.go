package cli

import "github.com/spf13/cobra"

func newQueryCommand(flags *rootFlags) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "query EXPR FILE...",
		Short: "Evaluate a JSONPath expression over the merged explicit document",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, err := loadStack(cmd, flags, args[1:])
			if err != nil {
				return err
			}
			var matches []any
			if full {
				matches, err = merged.Select(args[0])
			} else {
				matches, err = merged.SelectExplicit(args[0])
			}
			if err != nil {
				return err
			}
			if matches == nil {
				matches = []any{}
			}
			return flags.print(cmd.OutOrStdout(), matches)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "match against every position, not just explicit ones")
	return cmd
}
