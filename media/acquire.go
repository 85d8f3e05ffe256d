package media

import (
	"context"
	"fmt"

	"github.com/poiesic/larder/core"
)

// Acquisition is what the download stage produces for one work item.
type Acquisition struct {
	Key        string
	MediaPaths []string
	Caption    string
	SourceURL  string
	// Recipe is set when the source already carries a structured recipe.
	Recipe *core.Recipe
}

// Acquirer fetches the media for a work item.
type Acquirer interface {
	Acquire(ctx context.Context, item core.WorkItem) (*Acquisition, error)
}

// Router dispatches to an Acquirer by source kind.
type Router struct {
	acquirers map[core.SourceKind]Acquirer
}

var _ Acquirer = (*Router)(nil)

func NewRouter(urls, folders Acquirer) *Router {
	r := &Router{acquirers: make(map[core.SourceKind]Acquirer, 2)}
	if urls != nil {
		r.acquirers[core.SourceURL] = urls
	}
	if folders != nil {
		r.acquirers[core.SourceFolder] = folders
	}
	return r
}

func (r *Router) Acquire(ctx context.Context, item core.WorkItem) (*Acquisition, error) {
	a, ok := r.acquirers[item.Kind]
	if !ok {
		return nil, fmt.Errorf("invalid request: %w: %s", ErrUnsupportedSource, item.Kind)
	}
	return a.Acquire(ctx, item)
}
