package aggregator

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
	"github.com/clovid/prisma-sub000/internal/resource"
)

// Module bundles everything needed to aggregate data of one upstream module.
type Module struct {
	Conf    *appconfig.ModuleConfig
	Client  *remote.Client
	Backend Backend
	Tabs    TabCollector
	// Tree is the configured tab tree, nil when the module has none.
	Tree *model.Node

	engine *Engine
}

// ElementTree returns the tab tree to aggregate. In process modules without a configured tree
// get one tab per structure group; remote modules without one get an empty tree.
func (m *Module) ElementTree(ctx context.Context, taskIDs []model.ID) *model.Node {
	if m.Tree != nil {
		return m.Tree
	}
	if m.engine != nil {
		return m.engine.DefaultTree(ctx, taskIDs)
	}
	return &model.Node{}
}

type Modules struct {
	modules []*Module
}

func NewModules(conf *appconfig.Config, clients *remote.Registry, static *resource.StaticCache, images *resource.ImageVolumes) (*Modules, error) {
	r := &Modules{}
	for _, mc := range conf.Modules.Modules {
		m, err := newModule(conf, mc, clients, static, images)
		if err != nil {
			return nil, errors.Wrapf(err, "module %q", mc.Name)
		}
		r.modules = append(r.modules, m)
	}
	return r, nil
}

func newModule(conf *appconfig.Config, mc *appconfig.ModuleConfig, clients *remote.Registry, static *resource.StaticCache, images *resource.ImageVolumes) (*Module, error) {
	client, err := clients.Get(mc.Name)
	if err != nil {
		return nil, err
	}
	m := &Module{Conf: mc, Client: client}

	if mc.Tabs.Config != "" {
		data, err := os.ReadFile(filepath.Join(conf.TabsConfigDir, mc.Tabs.Config))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read tab config")
		}
		if m.Tree, err = model.ParseTabTree(data); err != nil {
			return nil, err
		}
	}

	var adapter Adapter
	switch mc.Backend {
	case appconfig.BackendRemote:
		m.Backend = &RemoteBackend{Client: client}
	case appconfig.BackendVQuest:
		adapter = &VQuest{Client: client, Static: static}
	case appconfig.BackendVQuestOnline:
		adapter = &VQuestOnline{VQuest: VQuest{Client: client, Static: static}}
	case appconfig.BackendVQuestHybrid:
		provider, err := clients.Get(mc.DatasetProvider)
		if err != nil {
			return nil, errors.Wrap(err, "dataset provider")
		}
		adapter = &VQuestHybrid{
			VQuestOnline: VQuestOnline{VQuest: VQuest{Client: client, Static: static}},
			Provider:     provider,
		}
	case appconfig.BackendCampus:
		adapter = &Campus{Client: client, Static: static}
	default:
		return nil, errors.Errorf("unknown backend %q", mc.Backend)
	}

	if adapter != nil {
		m.engine = &Engine{
			Adapter:     adapter,
			Images:      images,
			Client:      client,
			Conf:        mc,
			Concurrency: conf.ConcurrentTaskFetches,
		}
		m.Backend = m.engine
	}

	if mc.Tabs.Collector == appconfig.CollectorTemplate {
		if m.Tabs, err = NewTemplateCollector(client, static, mc.Tabs.Template); err != nil {
			return nil, err
		}
	} else if m.engine != nil {
		m.Tabs = &StructureCollector{Engine: m.engine, Tree: m.Tree}
	} else {
		return nil, errors.New("remote modules need a template tab collector")
	}
	return m, nil
}

func (r *Modules) Get(name string) (*Module, error) {
	for _, m := range r.modules {
		if m.Conf.Name == name {
			return m, nil
		}
	}
	return nil, errors.Wrap(appconfig.ErrUnknownModule, name)
}

// All returns the modules in configuration order.
func (r *Modules) All() []*Module {
	return r.modules
}
