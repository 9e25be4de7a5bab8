package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/facescan/pkg/scan"
	"github.com/teslashibe/facescan/pkg/web"
)

func newWatchCmd(opts *options) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a running dashboard's scan state",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			opts.logger.Debug("watching", "url", url)
			return web.Watch(cmd.Context(), url, func(v scan.View) {
				fmt.Fprintf(out, "%-12s %3d%%  %s\n", v.State, v.Status.Progress, v.Status.Text)
			})
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "ws://localhost:8080/ws/scan", "Dashboard scan stream")
	return cmd
}
