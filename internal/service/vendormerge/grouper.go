package vendormerge

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/guest-reconciler/internal/pkg/logger"
)

// Grouping sources reported in Analysis.Source.
const (
	SourceAI        = "ai"
	SourceHeuristic = "heuristic"
)

// Analysis is the read-only result of a duplicate search.
type Analysis struct {
	Groups     []Group  `json:"groups"`
	RosterSize int      `json:"rosterSize"`
	Source     string   `json:"source"`
	Errors     []string `json:"errors"`
}

var errNoClassifier = errors.New("text classifier not configured")

// Analyze proposes duplicate groups over every vendor not yet merged. It
// never mutates the store. A classifier failure is not an error: the
// heuristic groups are returned and the failure is listed in Errors.
func (s *Service) Analyze(ctx context.Context) (*Analysis, error) {
	entries, err := s.vendors.Roster(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vendor roster: %w", err)
	}
	r := newRoster(entries)

	res := &Analysis{Groups: []Group{}, RosterSize: len(entries), Errors: []string{}}
	if len(entries) == 0 {
		res.Source = SourceHeuristic
		return res, nil
	}

	groups, dropped, err := s.classify(ctx, r)
	if err != nil {
		logger.Info("vendor classifier unavailable, using heuristic grouping", "error", err.Error())
		res.Errors = append(res.Errors, err.Error())
		res.Source = SourceHeuristic
		groups = heuristicGroups(r)
	} else {
		res.Source = SourceAI
		res.Errors = append(res.Errors, dropped...)
	}
	if groups != nil {
		res.Groups = groups
	}

	logger.Info("vendor duplicate analysis",
		"roster", res.RosterSize, "groups", len(res.Groups), "source", res.Source, "errors", len(res.Errors))
	return res, nil
}

func (s *Service) classify(ctx context.Context, r *roster) ([]Group, []string, error) {
	if s.classifier == nil {
		return nil, nil, errNoClassifier
	}
	prompt, err := s.prompt.render(r)
	if err != nil {
		return nil, nil, err
	}
	reply, err := s.classifier.Classify(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, nil, err
	}
	proposed, err := parseGroups(reply)
	if err != nil {
		return nil, nil, err
	}
	groups, dropped := reconcile(proposed, r)
	return groups, dropped, nil
}
