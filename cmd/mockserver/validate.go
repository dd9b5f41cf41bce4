package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockserver-go/pkg/expectation"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|glob>...",
		Short: "Check expectation files without starting a server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			for _, arg := range args {
				matched, err := expectation.ExpandFiles(arg)
				if err != nil {
					return err
				}
				files = append(files, matched...)
			}
			for _, path := range files {
				exps, err := expectation.LoadFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				for i, e := range exps {
					if e == nil {
						return fmt.Errorf("%s: expectation %d is empty", path, i)
					}
					if err := e.Validate(); err != nil {
						return fmt.Errorf("%s: expectation %d: %w", path, i, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d expectation(s) OK\n", path, len(exps))
			}
			return nil
		},
	}
}
