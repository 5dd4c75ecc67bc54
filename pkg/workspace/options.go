package workspace

import (
	"github.com/kisdma/data-workspaces-core/pkg/vcs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type options struct {
	l          *zap.Logger
	fs         afero.Fs
	hostname   string
	noVCS      bool
	vcsOptions []vcs.Option
	clonePaths map[string]string
}

// Option for opening or creating a workspace
type Option func(*options)

// Logger for the workspace and its resources
func Logger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.l = l
		}
	}
}

// Fs is the file system of the workspace. Defaults to the OS file system.
func Fs(fs afero.Fs) Option {
	return func(o *options) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// Hostname identifies a new installation of a workspace. Defaults to the host name.
func Hostname(hostname string) Option {
	return func(o *options) {
		o.hostname = hostname
	}
}

// NoVCS keeps a new workspace out of version control
func NoVCS() Option {
	return func(o *options) {
		o.noVCS = true
	}
}

// VCSOptions tune the version control of the workspace
func VCSOptions(opts ...vcs.Option) Option {
	return func(o *options) {
		o.vcsOptions = append(o.vcsOptions, opts...)
	}
}

// ClonePaths sets local paths for the resources of a cloned workspace, by resource name
func ClonePaths(paths map[string]string) Option {
	return func(o *options) {
		o.clonePaths = paths
	}
}

func defaultOptions(opts []Option) options {
	o := options{
		l:  zap.NewNop(),
		fs: afero.NewOsFs(),
	}
	for _, apply := range opts {
		apply(&o)
	}
	o.vcsOptions = append([]vcs.Option{vcs.Logger(o.l)}, o.vcsOptions...)
	return o
}
