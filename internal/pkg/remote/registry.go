package remote

import (
	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/pkg/cache"
)

// Registry holds one client per configured module.
type Registry struct {
	modules *appconfig.ModuleRegistry
	clients map[string]*Client
}

func NewRegistry(conf *appconfig.Config, store cache.Store) *Registry {
	opts := Options{
		ConnectTimeout: conf.UpstreamConnectTimeout,
		Timeout:        conf.UpstreamTimeout,
		Attempts:       conf.UpstreamRetryAttempts,
	}
	r := &Registry{
		modules: conf.Modules,
		clients: make(map[string]*Client, len(conf.Modules.Modules)),
	}
	for _, m := range conf.Modules.Modules {
		r.clients[m.Name] = NewClient(m, store, opts)
	}
	return r
}

func (r *Registry) Get(module string) (*Client, error) {
	if c, ok := r.clients[module]; ok {
		return c, nil
	}
	_, err := r.modules.Get(module)
	return nil, err
}
