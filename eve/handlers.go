package eve

import (
	"context"
	"fmt"
	"log/slog"

	bifrost "github.com/autumn-order/bifrost-sub000"
	"github.com/autumn-order/bifrost-sub000/worker"
)

// InfoService fetches fresh entity data from ESI and persists it.
// Implementations own the cache timestamps: a successful update must
// advance the entity's updated-at column or the tracking passes will
// keep re-offering the same rows.
type InfoService interface {
	// UpdateFactionInfo refreshes the NPC faction set if its shared
	// 24-hour cache has expired. Factions are few and fixed, so one
	// call covers them all.
	UpdateFactionInfo(ctx context.Context) error

	// UpdateAllianceInfo refreshes a single alliance.
	UpdateAllianceInfo(ctx context.Context, allianceID int64) error

	// UpdateCorporationInfo refreshes a single corporation.
	UpdateCorporationInfo(ctx context.Context, corporationID int64) error

	// UpdateCharacterInfo refreshes a single character.
	UpdateCharacterInfo(ctx context.Context, characterID int64) error

	// UpdateAffiliations refreshes corporation, alliance, and faction
	// affiliations for up to ESIAffiliationRequestLimit characters in
	// one bulk request.
	UpdateAffiliations(ctx context.Context, characterIDs []int64) error
}

// NewHandlers maps every job kind onto the matching InfoService
// method. Register the result on a worker registry:
//
//	for kind, h := range eve.NewHandlers(svc, logger) {
//		registry.Register(kind, h)
//	}
func NewHandlers(svc InfoService, logger *slog.Logger) map[bifrost.Kind]worker.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return map[bifrost.Kind]worker.Handler{
		bifrost.KindUpdateFactionInfo: func(ctx context.Context, _ bifrost.Job) error {
			return svc.UpdateFactionInfo(ctx)
		},

		bifrost.KindUpdateAllianceInfo: func(ctx context.Context, job bifrost.Job) error {
			j, ok := job.(bifrost.UpdateAllianceInfo)
			if !ok {
				return fmt.Errorf("eve: unexpected job type %T for kind %s", job, job.Kind())
			}
			return svc.UpdateAllianceInfo(ctx, j.AllianceID)
		},

		bifrost.KindUpdateCorporationInfo: func(ctx context.Context, job bifrost.Job) error {
			j, ok := job.(bifrost.UpdateCorporationInfo)
			if !ok {
				return fmt.Errorf("eve: unexpected job type %T for kind %s", job, job.Kind())
			}
			return svc.UpdateCorporationInfo(ctx, j.CorporationID)
		},

		bifrost.KindUpdateCharacterInfo: func(ctx context.Context, job bifrost.Job) error {
			j, ok := job.(bifrost.UpdateCharacterInfo)
			if !ok {
				return fmt.Errorf("eve: unexpected job type %T for kind %s", job, job.Kind())
			}
			return svc.UpdateCharacterInfo(ctx, j.CharacterID)
		},

		bifrost.KindUpdateAffiliations: func(ctx context.Context, job bifrost.Job) error {
			j, ok := job.(bifrost.UpdateAffiliations)
			if !ok {
				return fmt.Errorf("eve: unexpected job type %T for kind %s", job, job.Kind())
			}
			ids := j.CharacterIDs
			if len(ids) == 0 {
				return nil
			}
			if len(ids) > ESIAffiliationRequestLimit {
				logger.Warn("affiliation job exceeds the ESI request limit, truncating",
					slog.Int("characters", len(ids)),
					slog.Int("limit", ESIAffiliationRequestLimit))
				ids = ids[:ESIAffiliationRequestLimit]
			}
			return svc.UpdateAffiliations(ctx, ids)
		},
	}
}
