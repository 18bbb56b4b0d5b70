package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/openedx/edxoffline/internal/course"
	"github.com/openedx/edxoffline/internal/domain"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <course-structure.json>",
		Short: "Show the download status of every section and subsection",
		Args:  cobra.ExactArgs(1),
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

			view := a.Service.AddTree(tree)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BLOCK\tNAME\tSTATE\tITEMS\tREMAINING\tTOTAL")
			tree.Walk(tree.Root(), func(n *domain.ContentNode) bool {
				if n.Kind != domain.KindCourse && n.Kind != domain.KindChapter && n.Kind != domain.KindSequential {
					return false
				}
				st := view.Statuses.Get(n.ID)
				if st.TotalCount == 0 {
					return true
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n", n.ID, n.DisplayName, st.State,
					st.DownloadedCount, st.TotalCount,
					humanize.Bytes(uint64(st.RemainingBytes)), humanize.Bytes(uint64(st.TotalBytes)))
				return true
			})
			if err := w.Flush(); err != nil {
				return err
			}

			sum := view.Summary
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d item(s) left to download (%s of %s)\n",
				sum.RemainingCount, sum.AllCount, humanize.Bytes(uint64(sum.RemainingBytes)), humanize.Bytes(uint64(sum.AllBytes)))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every download in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(a)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCOURSE\tSTATE\tSIZE\tPATH")
			for _, rec := range a.Ledger.All(cmd.Context()).Records() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rec.ID, rec.CourseID, rec.State,
					humanize.Bytes(uint64(max(rec.ByteSize, 0))), rec.LocalPath)
			}
			return w.Flush()
		},
	}
}
