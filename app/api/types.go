package api

import (
	"context"

	"github.com/lysyi3m/rss-mosaic/app/aggregator"
	"github.com/lysyi3m/rss-mosaic/app/pager"
	"github.com/lysyi3m/rss-mosaic/app/registry"
)

type AggregatorInterface interface {
	AggregateTagged(ctx context.Context, gens *aggregator.Generations, mode aggregator.Mode, opts ...aggregator.Option) aggregator.Tagged
}

var _ AggregatorInterface = (*aggregator.Aggregator)(nil)

type Handler struct {
	registry   registry.Registry
	aggregator AggregatorInterface
	sessions   *SessionStore
}

type sessionResponse struct {
	Session   string          `json:"session"`
	Mode      aggregator.Mode `json:"mode"`
	Total     int             `json:"total"`
	Remaining int             `json:"remaining"`
	State     string          `json:"state"`
	Page      pager.Page      `json:"page"`
}
