package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justyntemme/claphost/pkg/host"
)

type listedLibrary struct {
	Path    string                  `yaml:"path"`
	Error   string                  `yaml:"error,omitempty"`
	Plugins []host.PluginDescriptor `yaml:"plugins,omitempty"`
}

func (a *app) listCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the plugins of every known library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			paths, err := a.libraries()
			if err != nil {
				return err
			}

			listed := make([]listedLibrary, 0, len(paths))
			for _, path := range paths {
				entry := listedLibrary{Path: path}
				lib, err := host.Open(cmd.Context(), a.loader, path, a.hostOptions()...)
				if err != nil {
					a.log.Warn().Err(err).Str("library", path).Msg("cannot open library")
					entry.Error = err.Error()
				} else {
					entry.Plugins = lib.Descriptors()
					if err := lib.Close(); err != nil {
						return err
					}
				}
				listed = append(listed, entry)
			}

			out := cmd.OutOrStdout()
			if format == formatYAML {
				return writeYAML(out, listed)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tNAME\tVERSION\tFEATURES\tLIBRARY")
			for _, lib := range listed {
				if lib.Error != "" {
					fmt.Fprintf(tw, "-\t-\t-\t-\t%s (%s)\n", lib.Path, lib.Error)
					continue
				}
				for _, d := range lib.Plugins {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Version, strings.Join(d.Features, ","), lib.Path)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text or yaml")
	return cmd
}
