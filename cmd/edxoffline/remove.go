package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openedx/edxoffline/internal/course"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <course-structure.json> [block-id...]",
		Short: "Delete downloaded content of a course, or of some of its blocks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := course.LoadFile(args[0])
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(a)

			a.Service.AddTree(tree)
			removed, err := a.Service.Remove(cmd.Context(), tree.CourseID(), args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d download(s)\n", len(removed))
			return nil
		},
	}
}
