// Package cli implements the claphost command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justyntemme/claphost/pkg/config"
	"github.com/justyntemme/claphost/pkg/host"
	"github.com/justyntemme/claphost/pkg/loader"
	"github.com/justyntemme/claphost/pkg/logger"
	"github.com/justyntemme/claphost/pkg/refplug"
)

// Version is reported to plugins and by --version. Set at link time.
var Version = "dev"

type app struct {
	cfgFile  string
	logLevel string

	v      *viper.Viper
	cfg    *config.Config
	log    zerolog.Logger
	closer io.Closer
	loader loader.Loader
}

// NewRootCommand builds the claphost command tree.
func NewRootCommand() *cobra.Command {
	a := &app{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "claphost",
		Short:         "Load, inspect and render CLAP plugins",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./claphost.yaml or the user config dir)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		a.listCommand(),
		a.describeCommand(),
		a.renderCommand(),
		a.stateCommand(),
	)
	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	a.v = config.New(a.cfgFile)
	if err := a.v.BindPFlag("logging.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	if err := config.Read(a.v); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log, a.closer, err = logger.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.Debug().Str("file", used).Msg("config loaded")
	}

	static := loader.NewStatic()
	if cfg.Plugins.Builtin {
		static.Register(refplug.Path, refplug.Entry())
	}
	a.loader = static
	return nil
}

func (a *app) hostOptions() []host.Option {
	info := host.DefaultInfo
	info.Version = Version
	return []host.Option{
		host.WithLogger(a.log),
		host.WithInfo(info),
		host.WithMaxEvents(a.cfg.Audio.MaxEvents),
		host.WithQueueCapacity(a.cfg.Audio.QueueCapacity),
		host.WithErrorThreshold(a.cfg.Audio.ErrorThreshold),
	}
}

// libraries lists every library path known to the host: the builtin one
// first, then the bundles found on the search paths.
func (a *app) libraries() ([]string, error) {
	var paths []string
	if a.cfg.Plugins.Builtin {
		paths = append(paths, refplug.Path)
	}
	found, err := loader.Discover(a.cfg.Plugins.SearchPaths)
	if err != nil {
		return nil, err
	}
	return append(paths, found...), nil
}

// find opens the library providing pluginID. When library is set only that
// path is tried.
func (a *app) find(ctx context.Context, library, pluginID string) (*host.Library, error) {
	paths := []string{library}
	if library == "" {
		var err error
		if paths, err = a.libraries(); err != nil {
			return nil, err
		}
	}
	for _, path := range paths {
		lib, err := host.Open(ctx, a.loader, path, a.hostOptions()...)
		if err != nil {
			if library != "" {
				return nil, err
			}
			a.log.Debug().Err(err).Str("library", path).Msg("skipping library")
			continue
		}
		if _, ok := lib.Descriptor(pluginID); ok {
			return lib, nil
		}
		if err := lib.Close(); err != nil {
			a.log.Warn().Err(err).Str("library", path).Msg("close failed")
		}
	}
	return nil, fmt.Errorf("plugin %q not found", pluginID)
}

// open finds pluginID and creates an instance of it. The returned release
// destroys the instance and closes its library.
func (a *app) open(ctx context.Context, library, pluginID string) (*host.Instance, func(), error) {
	lib, err := a.find(ctx, library, pluginID)
	if err != nil {
		return nil, nil, err
	}
	in, err := lib.NewInstance(pluginID)
	if err != nil {
		lib.Close()
		return nil, nil, err
	}
	release := func() {
		if err := in.Destroy(); err != nil {
			a.log.Warn().Err(err).Msg("destroy failed")
		}
		if err := lib.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
	if err := in.Create(); err != nil {
		release()
		return nil, nil, err
	}
	return in, release, nil
}
