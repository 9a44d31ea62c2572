package eve

import (
	"time"

	"github.com/autumn-order/bifrost-sub000/track"
	"github.com/autumn-order/bifrost-sub000/worker"
)

// How long cached data for each entity type stays valid.
const (
	FactionCacheDuration     = 24 * time.Hour
	AllianceCacheDuration    = 24 * time.Hour
	CorporationCacheDuration = 24 * time.Hour
	CharacterCacheDuration   = 30 * 24 * time.Hour
	AffiliationCacheDuration = time.Hour
)

// How often each tracking pass runs. Batch limits spread a full table
// refresh across the cache duration in steps of this size.
const (
	FactionScheduleInterval     = 30 * time.Minute
	AllianceScheduleInterval    = 30 * time.Minute
	CorporationScheduleInterval = 30 * time.Minute
	CharacterScheduleInterval   = 30 * time.Minute
	AffiliationScheduleInterval = 10 * time.Minute
)

// Cron expressions for the recurring passes, six fields with a leading
// seconds column. The minute offsets stagger the passes so no two hit
// the database in the same tick.
const (
	FactionCron     = "0 17,47 * * * *"
	AllianceCron    = "0 28,58 * * * *"
	CorporationCron = "0 11,41 * * * *"
	CharacterCron   = "0 6,36 * * * *"
	AffiliationCron = "0 2,12,22,32,42,52 * * * *"
)

// ESIAffiliationRequestLimit is the maximum number of character ids
// accepted by ESI's POST /characters/affiliation/ endpoint.
const ESIAffiliationRequestLimit = 1000

// Downtime returns EVE's daily downtime window, 10:58 to 11:07 UTC.
// ESI is unreliable while it is in effect, so worker pools should hold
// dispatch until the window ends.
func Downtime() worker.DowntimeWindow {
	return worker.DowntimeWindow{
		Start:  10*time.Hour + 58*time.Minute,
		Length: 9 * time.Minute,
	}
}

// Descriptors for the tracked tables. The names appear in tracking
// pass logs. CharacterAffiliations tracks the same character table as
// CharacterInfo but through its affiliation columns, so the two passes
// schedule independently.
var (
	AllianceInfo = track.Entity{
		Name:              "alliance",
		Table:             "eve_alliance",
		IDColumn:          "alliance_id",
		UpdatedAtColumn:   "updated_at",
		ScheduledAtColumn: "job_scheduled_at",
	}

	CorporationInfo = track.Entity{
		Name:              "corporation",
		Table:             "eve_corporation",
		IDColumn:          "corporation_id",
		UpdatedAtColumn:   "updated_at",
		ScheduledAtColumn: "job_scheduled_at",
	}

	CharacterInfo = track.Entity{
		Name:              "character",
		Table:             "eve_character",
		IDColumn:          "character_id",
		UpdatedAtColumn:   "info_updated_at",
		ScheduledAtColumn: "info_job_scheduled_at",
	}

	CharacterAffiliations = track.Entity{
		Name:              "affiliation",
		Table:             "eve_character",
		IDColumn:          "character_id",
		UpdatedAtColumn:   "affiliation_updated_at",
		ScheduledAtColumn: "affiliation_job_scheduled_at",
	}
)
