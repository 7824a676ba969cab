package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func importCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import JSON price files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				run, err := a.service.Import(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				fmt.Fprintf(out, "%s: imported=%d skipped=%d rejected=%d elapsed=%dms\n",
					run.FileName, run.Imported, run.Skipped, run.Rejected, run.ElapsedMs)
			}
			return nil
		},
	}
}
