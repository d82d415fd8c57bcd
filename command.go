// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wsgate

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/z5labs/wsgate/config"
	"github.com/z5labs/wsgate/config/configtmpl"
	"github.com/z5labs/wsgate/config/key"
	"github.com/z5labs/wsgate/wsgi"

	"github.com/spf13/cobra"
)

// DefaultConfigPrefix is the config key the [wsgi.Config] of an app
// is decoded from.
const DefaultConfigPrefix = "wsgi"

type commandOptions struct {
	name          string
	defaultConfig io.Reader
	configFS      fs.FS
	prefix        string
	out           io.Writer
}

// CommandOption configures the command returned by [NewCommand].
type CommandOption func(*commandOptions)

// Name sets the command name shown in usage output.
func Name(name string) CommandOption {
	return func(co *commandOptions) {
		co.name = name
	}
}

// DefaultConfig sets the base YAML config. It is rendered as a
// text/template with the env and default funcs before being parsed,
// and is overridden by the --config file and the --port flag.
func DefaultConfig(r io.Reader) CommandOption {
	return func(co *commandOptions) {
		co.defaultConfig = r
	}
}

// ConfigFS sets the filesystem the --config path is opened from.
// By default the path is resolved against the OS filesystem.
func ConfigFS(fsys fs.FS) CommandOption {
	return func(co *commandOptions) {
		co.configFS = fsys
	}
}

// ConfigPrefix overrides the config key holding the app's [wsgi.Config].
// The [wsgi.Defaults] and the --port flag are written beneath it.
func ConfigPrefix(prefix string) CommandOption {
	return func(co *commandOptions) {
		co.prefix = prefix
	}
}

// Output redirects usage and error output of the command.
func Output(w io.Writer) CommandOption {
	return func(co *commandOptions) {
		co.out = w
	}
}

// NewCommand returns a cobra command which assembles the config sources
// from its flags and passes them to [Run] along with builder.
func NewCommand[T any](builder AppBuilder[T], opts ...CommandOption) *cobra.Command {
	co := &commandOptions{
		name:    filepath.Base(os.Args[0]),
		prefix: DefaultConfigPrefix,
	}
	for _, opt := range opts {
		opt(co)
	}

	var (
		port       int
		configPath string
	)

	cmd := &cobra.Command{
		Use:           co.name,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs, err := co.sources(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				srcs = append(srcs, portSource(co.prefix, port))
			}
			return Run(cmd.Context(), builder, srcs...)
		},
	}
	if co.out != nil {
		cmd.SetOut(co.out)
		cmd.SetErr(co.out)
	}

	flags := cmd.Flags()
	flags.IntVarP(&port, "port", "p", 0, "port to listen on, overrides the config")
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML or JSON config file")

	return cmd
}

func (co *commandOptions) sources(configPath string) ([]config.Source, error) {
	srcs := []config.Source{wsgi.Defaults(co.prefix)}
	if co.defaultConfig != nil {
		tmpl := config.RenderTextTemplate(co.defaultConfig, configtmpl.Funcs()...)
		srcs = append(srcs, config.FromYaml(tmpl))
	}
	if configPath == "" {
		return srcs, nil
	}

	fsys, name := co.configFS, configPath
	if fsys == nil {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, err
		}
		fsys, name = os.DirFS(filepath.Dir(abs)), filepath.Base(abs)
	}

	src, err := config.FromFile(config.NewFileReader(fsys, name))
	if err != nil {
		return nil, err
	}
	return append(srcs, src), nil
}

func portSource(prefix string, port int) config.Source {
	k := key.Chain{key.Name("port")}
	if prefix != "" {
		k = append(key.Parse(prefix), k...)
	}
	return config.SourceFunc(func(store config.Store) error {
		return store.Set(k, port)
	})
}

// Main executes the command built from builder and exits the process
// with status 1 if it fails.
func Main[T any](builder AppBuilder[T], opts ...CommandOption) {
	cmd := NewCommand(builder, opts...)

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), err)
	os.Exit(1)
}
