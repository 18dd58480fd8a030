package worker

import (
	"context"
	"fmt"
	"log/slog"
)

// updateCommitsAndVisibility refreshes the repository's stored commit graph
// and recomputes which dumps are reachable from its current tip.
//
// The graph fragment is discovered backward from the just-processed commit.
// When the tip has moved past that commit, a second fragment is discovered
// from the tip and merged in by unioning parent sets, so the path between
// the two anchors is fully represented without re-walking history already
// covered by earlier uploads.
func (p *Pipeline) updateCommitsAndVisibility(ctx context.Context, repository, commit string, logger *slog.Logger) error {
	tip, err := p.git.Head(ctx, repository)
	if err != nil {
		return fmt.Errorf("resolve tip: %w", err)
	}
	if tip == "" {
		return fmt.Errorf("%s: %w", repository, ErrNoTip)
	}

	graph, err := p.git.CommitsNear(ctx, repository, commit)
	if err != nil {
		return fmt.Errorf("discover commits near %s: %w", commit, err)
	}

	if tip != commit {
		tipGraph, err := p.git.CommitsNear(ctx, repository, tip)
		if err != nil {
			return fmt.Errorf("discover commits near tip %s: %w", tip, err)
		}
		graph.Merge(tipGraph)
	}

	if err := p.store.UpdateCommits(ctx, repository, graph); err != nil {
		return fmt.Errorf("store commit graph: %w", err)
	}

	if err := p.store.UpdateDumpsVisibleFromTip(ctx, repository, tip); err != nil {
		return fmt.Errorf("update dump visibility: %w", err)
	}

	logger.Info("updated visibility", "tip", tip, "commits", len(graph))
	return nil
}
