package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/teslashibe/facescan/pkg/scan"
)

func newScanCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ctrl, _, err := opts.newSession()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := ctrl.Mount(ctx); err != nil {
				return err
			}

			bar := progressbar.NewOptions(100,
				progressbar.OptionSetDescription(scan.StatusAnalyzing),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
			)
			unsubscribe := ctrl.Subscribe(func(v scan.View) {
				bar.Set(v.Status.Progress)
			})

			if err := ctrl.StartScan(); err != nil {
				unsubscribe()
				return err
			}
			err = ctrl.Wait(ctx)
			unsubscribe()
			bar.Finish()
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}

			v := ctrl.View()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(v); err != nil {
					return err
				}
			} else {
				printView(cmd, v)
			}
			return scanError(v)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the final view as JSON")
	return cmd
}

func printView(cmd *cobra.Command, v scan.View) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, v.Status.Text)
	if v.Result.SegmentedFaceURL != nil {
		fmt.Fprintf(out, "face:      %s\n", *v.Result.SegmentedFaceURL)
	}
	if v.Result.SkinToneCategory != nil {
		fmt.Fprintf(out, "skin tone: %s\n", *v.Result.SkinToneCategory)
	}
}

// scanError turns a failed scan into a non-zero exit.
func scanError(v scan.View) error {
	text := v.Status.Text
	if text == scan.StatusScanFailed || strings.HasPrefix(text, scan.StatusErrorPrefix) {
		return errors.New(text)
	}
	return nil
}
