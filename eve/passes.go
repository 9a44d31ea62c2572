package eve

import (
	"context"
	"fmt"
	"log/slog"

	bifrost "github.com/autumn-order/bifrost-sub000"
	"github.com/autumn-order/bifrost-sub000/cron"
	"github.com/autumn-order/bifrost-sub000/queue"
	"github.com/autumn-order/bifrost-sub000/track"
)

// Passes bundles the five recurring refresh passes and the trackers
// behind them.
type Passes struct {
	defs     []cron.Definition
	trackers map[string]*track.Tracker
}

// NewPasses builds the refresh passes against the given queue and
// track store. Except for factions, each pass runs a tracker over its
// entity table; the faction pass pushes a single job and lets the
// handler decide whether the shared cache has expired.
func NewPasses(q *queue.Queue, store track.Store, logger *slog.Logger) (*Passes, error) {
	alliances, err := track.New(track.Config{
		Entity:           AllianceInfo,
		CacheDuration:    AllianceCacheDuration,
		ScheduleInterval: AllianceScheduleInterval,
		Build: func(ids []int64) bifrost.Job {
			return bifrost.UpdateAllianceInfo{AllianceID: ids[0]}
		},
	}, store, q, track.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("eve: alliance tracker: %w", err)
	}

	corporations, err := track.New(track.Config{
		Entity:           CorporationInfo,
		CacheDuration:    CorporationCacheDuration,
		ScheduleInterval: CorporationScheduleInterval,
		Build: func(ids []int64) bifrost.Job {
			return bifrost.UpdateCorporationInfo{CorporationID: ids[0]}
		},
	}, store, q, track.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("eve: corporation tracker: %w", err)
	}

	characters, err := track.New(track.Config{
		Entity:           CharacterInfo,
		CacheDuration:    CharacterCacheDuration,
		ScheduleInterval: CharacterScheduleInterval,
		Build: func(ids []int64) bifrost.Job {
			return bifrost.UpdateCharacterInfo{CharacterID: ids[0]}
		},
	}, store, q, track.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("eve: character tracker: %w", err)
	}

	affiliations, err := track.New(track.Config{
		Entity:           CharacterAffiliations,
		CacheDuration:    AffiliationCacheDuration,
		ScheduleInterval: AffiliationScheduleInterval,
		BatchSize:        ESIAffiliationRequestLimit,
		Build: func(ids []int64) bifrost.Job {
			return bifrost.UpdateAffiliations{CharacterIDs: ids}
		},
	}, store, q, track.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("eve: affiliation tracker: %w", err)
	}

	p := &Passes{
		trackers: map[string]*track.Tracker{
			AllianceInfo.Name:          alliances,
			CorporationInfo.Name:       corporations,
			CharacterInfo.Name:         characters,
			CharacterAffiliations.Name: affiliations,
		},
	}
	p.defs = []cron.Definition{
		{
			Name:     "faction-info",
			Schedule: FactionCron,
			Run: func(ctx context.Context) error {
				_, err := q.Push(ctx, bifrost.UpdateFactionInfo{})
				return err
			},
		},
		{Name: "alliance-info", Schedule: AllianceCron, Run: runTracker(alliances)},
		{Name: "corporation-info", Schedule: CorporationCron, Run: runTracker(corporations)},
		{Name: "character-info", Schedule: CharacterCron, Run: runTracker(characters)},
		{Name: "character-affiliations", Schedule: AffiliationCron, Run: runTracker(affiliations)},
	}
	return p, nil
}

// Definitions returns the cron definitions for the five passes.
func (p *Passes) Definitions() []cron.Definition {
	return p.defs
}

// Tracker returns the tracker behind an entity name ("alliance",
// "corporation", "character", "affiliation"), or nil for factions and
// unknown names.
func (p *Passes) Tracker(name string) *track.Tracker {
	return p.trackers[name]
}

func runTracker(t *track.Tracker) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := t.Run(ctx)
		return err
	}
}
