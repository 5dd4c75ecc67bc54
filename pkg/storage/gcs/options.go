package gcs

import (
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Option is a functor to pass optional parameters to the gcs store
type Option func(*gcs)

// Logger specifies a logger for this store
func Logger(logger *zap.Logger) Option {
	return func(g *gcs) {
		if logger != nil {
			g.l = logger
		}
	}
}

// Prefix roots all keys of the store under some prefix in the bucket
func Prefix(prefix string) Option {
	return func(g *gcs) {
		g.prefix = strings.Trim(prefix, "/")
	}
}

// CredentialsFile specifies a service account credentials file.
//
// When not set, application default credentials apply (e.g. GOOGLE_APPLICATION_CREDENTIALS).
func CredentialsFile(file string) Option {
	return func(g *gcs) {
		if file != "" {
			g.clientOptions = append(g.clientOptions, option.WithCredentialsFile(file))
		}
	}
}

// ClientOptions passes extra options to the GCS clients
func ClientOptions(opts ...option.ClientOption) Option {
	return func(g *gcs) {
		g.clientOptions = append(g.clientOptions, opts...)
	}
}
