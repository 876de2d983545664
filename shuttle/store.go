package shuttle

import (
	"context"
	"sync"

	"pkt.systems/pslog"

	"tt-commander/types"
)

// Loader fetches the projects of a shuttle.
type Loader interface {
	Load(ctx context.Context, id string) ([]types.Project, error)
}

// Store holds the metadata of the shuttle the board last reported. Only the
// most recent request may update it.
type Store struct {
	loader Loader
	log    pslog.Logger

	mu       sync.Mutex
	info     types.ShuttleInfo
	seq      uint64
	onChange func(types.ShuttleInfo)
}

// NewStore returns an empty store backed by loader.
func NewStore(loader Loader, logger pslog.Logger) *Store {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Store{
		loader: loader,
		log:    logger,
		info:   types.ShuttleInfo{ID: "unknown", Projects: []types.Project{}},
	}
}

// OnChange registers fn to receive every update.
func (s *Store) OnChange(fn func(types.ShuttleInfo)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Info returns the current shuttle metadata.
func (s *Store) Info() types.ShuttleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.info
	info.Projects = append([]types.Project(nil), s.info.Projects...)
	return info
}

// Project returns the project at address, if the shuttle lists one.
func (s *Store) Project(address int) (types.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.info.Projects {
		if p.Address == address {
			return p, true
		}
	}
	return types.Project{}, false
}

// Load replaces the metadata with the projects of id. It has the signature
// of a board shuttle loader.
func (s *Store) Load(ctx context.Context, id string) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.info = types.ShuttleInfo{ID: id, Loading: true, Projects: []types.Project{}}
	s.mu.Unlock()
	s.notify()

	log := s.log.With("shuttle", id)
	log.Info("loading shuttle")
	projects, err := s.loader.Load(ctx, id)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		log.Debug("stale shuttle load discarded")
		return
	}
	s.info.Loading = false
	if err != nil {
		s.info.Error = err.Error()
	} else {
		s.info.Projects = projects
	}
	s.mu.Unlock()

	if err != nil {
		log.Warn("shuttle load failed", "err", err)
	} else {
		log.Info("shuttle loaded", "projects", len(projects))
	}
	s.notify()
}

func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(s.Info())
	}
}
