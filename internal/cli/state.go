package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/justyntemme/claphost/pkg/state"
)

func (a *app) stateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Save and load plugin state snapshots",
	}
	cmd.AddCommand(a.stateSaveCommand(), a.stateLoadCommand())
	return cmd
}

// parseSetting parses ID=VALUE or NAME=VALUE.
func parseSetting(s string) (key string, value float64, err error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", 0, fmt.Errorf("invalid setting %q, want ID=VALUE", s)
	}
	value, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid setting %q: %w", s, err)
	}
	return key, value, nil
}

func (a *app) stateSaveCommand() *cobra.Command {
	var (
		library  string
		context  string
		settings []string
	)
	cmd := &cobra.Command{
		Use:   "save PLUGIN-ID FILE",
		Short: "Create an instance, apply settings and save its state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := state.ParseContext(context)
			if err != nil {
				return err
			}
			in, release, err := a.open(cmd.Context(), library, args[0])
			if err != nil {
				return err
			}
			defer release()

			reg, err := in.Params()
			if err != nil {
				return err
			}
			infos, err := reg.All()
			if err != nil {
				return err
			}
			for _, s := range settings {
				key, value, err := parseSetting(s)
				if err != nil {
					return err
				}
				id, err := resolveParam(infos, key)
				if err != nil {
					return err
				}
				reg.Set(id, value)
			}
			if err := reg.Err(); err != nil {
				return err
			}

			snap, err := state.Capture(in, ctx, time.Now())
			if err != nil {
				return err
			}
			if err := state.WriteFile(args[1], snap); err != nil {
				return err
			}
			a.log.Info().Str("plugin", snap.PluginID).Str("file", args[1]).Int("bytes", len(snap.Data)).Msg("state saved")
			return nil
		},
	}
	cmd.Flags().StringVar(&library, "library", "", "library path (default: search every known library)")
	cmd.Flags().StringVar(&context, "context", "project", "state context: project, preset or duplicate")
	cmd.Flags().StringArrayVar(&settings, "set", nil, "parameter to set before saving, as ID=VALUE or NAME=VALUE (repeatable)")
	return cmd
}

func (a *app) stateLoadCommand() *cobra.Command {
	var (
		library string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Load a snapshot into a fresh instance and show the resulting parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			snap, err := state.ReadFile(args[0])
			if err != nil {
				return err
			}
			in, release, err := a.open(cmd.Context(), library, snap.PluginID)
			if err != nil {
				return err
			}
			defer release()

			if err := state.Restore(in, snap); err != nil {
				return err
			}
			if desc := in.Descriptor(); desc.Version != snap.PluginVersion {
				a.log.Warn().Str("saved", snap.PluginVersion).Str("loaded", desc.Version).Msg("plugin version differs from snapshot")
			}

			d, err := a.describe(in)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format == formatYAML {
				return writeYAML(out, d.Params)
			}
			fmt.Fprintf(out, "%s state (%s, saved %s)\n", snap.PluginID, snap.Context, snap.Saved.Format(time.RFC3339))
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tNAME\tVALUE")
			for _, p := range d.Params {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.Name, valueText(p))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&library, "library", "", "library path (default: search every known library)")
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text or yaml")
	return cmd
}
