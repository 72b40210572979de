package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justyntemme/claphost/pkg/job"
)

func (a *app) renderCommand() *cobra.Command {
	var (
		format      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "render JOB-FILE...",
		Short: "Render the jobs of one or more .toml or .hcl job files",
		Long: `Render runs every job offline on its own plugin instance and reports
the peak and RMS level of each output channel. Jobs run concurrently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			defaults := job.Defaults{
				SampleRate: a.cfg.Audio.SampleRate,
				BlockSize:  a.cfg.Audio.MaxBlock,
			}
			var jobs []job.Job
			for _, path := range args {
				loaded, err := job.Load(path, defaults)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				jobs = append(jobs, loaded...)
			}

			r := &job.Renderer{
				Loader:      a.loader,
				Log:         a.log,
				Options:     a.hostOptions(),
				Concurrency: concurrency,
			}
			results, err := r.RenderAll(cmd.Context(), jobs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == formatYAML {
				return writeYAML(out, results)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "JOB\tPLUGIN\tFRAMES\tCHANNEL\tPEAK dB\tRMS dB")
			for _, res := range results {
				for ch, l := range res.Levels {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f\t%.1f\n", res.Name, res.Plugin, res.Frames, ch, l.PeakDB, l.RMSDB)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text or yaml")
	cmd.Flags().IntVarP(&concurrency, "jobs", "j", 0, "maximum concurrent renders (0: unlimited)")
	return cmd
}
