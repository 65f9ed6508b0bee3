package service

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/rain-route-planner/internal/models"
)

const (
	DefaultNamingCap   = 120
	DefaultNamingBatch = 5
)

// namingTargets returns the indices of generated waypoints to resolve: all of
// them up to limit, otherwise every ceil(n/limit)-th one.
func namingTargets(waypoints []models.Waypoint, limit int) []int {
	var generated []int
	for i, wp := range waypoints {
		if wp.Generated() {
			generated = append(generated, i)
		}
	}
	if limit <= 0 || len(generated) <= limit {
		return generated
	}
	stride := int(math.Ceil(float64(len(generated)) / float64(limit)))
	picked := make([]int, 0, limit)
	for i := 0; i < len(generated); i += stride {
		picked = append(picked, generated[i])
	}
	return picked
}

// nameWaypoints returns a copy of waypoints with sampled placeholders replaced
// by place names. Each batch runs concurrently and completes before the next
// starts, so at most batch lookups are in flight.
func (s *RouteService) nameWaypoints(ctx context.Context, waypoints []models.Waypoint) []models.Waypoint {
	out := make([]models.Waypoint, len(waypoints))
	copy(out, waypoints)
	if s.namer == nil {
		return out
	}

	targets := namingTargets(out, s.opts.NamingCap)
	batch := s.opts.NamingBatch
	if batch <= 0 {
		batch = DefaultNamingBatch
	}
	for start := 0; start < len(targets); start += batch {
		if ctx.Err() != nil {
			break
		}
		end := min(start+batch, len(targets))
		var g errgroup.Group
		for _, idx := range targets[start:end] {
			g.Go(func() error {
				out[idx].Name = s.namer.Name(ctx, out[idx].Location)
				return nil
			})
		}
		_ = g.Wait()
	}
	return out
}
