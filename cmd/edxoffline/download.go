package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/openedx/edxoffline/internal/course"
	"github.com/openedx/edxoffline/internal/domain"
)

func newDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <course-structure.json> [block-id...]",
		Short: "Download a course, or some of its blocks, and wait until done",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := course.LoadFile(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer shutdown(a)

			a.Service.AddTree(tree)
			progress, unsubscribe := a.Queue.Progress(256)
			defer unsubscribe()

			runErr := make(chan error, 1)
			go func() { runErr <- a.Run(ctx) }()

			res, err := a.Service.Download(ctx, tree.CourseID(), args[1:])
			if err != nil {
				cancel()
				<-runErr
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued %d item(s), %d already present or in progress\n", len(res.Admitted), len(res.Skipped))

			drained := make(chan error, 1)
			go func() { drained <- a.Queue.Wait(ctx) }()

			for waiting := true; waiting; {
				select {
				case ev, ok := <-progress:
					if !ok {
						waiting = false
						break
					}
					printProgress(cmd, ev)
				case err := <-drained:
					if err != nil {
						fmt.Fprintln(out)
						cancel()
						<-runErr
						return err
					}
					waiting = false
				}
			}

			view, _ := a.Watcher.View(tree.CourseID())
			root := view.Statuses.Get(tree.Root())
			fmt.Fprintf(out, "\nDone: %d/%d downloaded, %s remaining\n",
				root.DownloadedCount, root.TotalCount, humanize.Bytes(uint64(root.RemainingBytes)))

			cancel()
			return <-runErr
		},
	}
}

func printProgress(cmd *cobra.Command, ev domain.ProgressChanged) {
	if ev.TotalBytes > 0 {
		pct := float64(ev.BytesRead) / float64(ev.TotalBytes) * 100
		fmt.Fprintf(cmd.OutOrStdout(), "\r%-40s %s / %s (%.1f%%)   ", ev.ID,
			humanize.Bytes(uint64(ev.BytesRead)), humanize.Bytes(uint64(ev.TotalBytes)), pct)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\r%-40s %s   ", ev.ID, humanize.Bytes(uint64(ev.BytesRead)))
}
