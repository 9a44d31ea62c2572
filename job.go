package bifrost

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Kind identifies one of the closed set of job variants.
type Kind string

// Job kinds for EVE entity refresh work.
const (
	KindUpdateFactionInfo     Kind = "update_faction_info"
	KindUpdateAllianceInfo    Kind = "update_alliance_info"
	KindUpdateCorporationInfo Kind = "update_corporation_info"
	KindUpdateCharacterInfo   Kind = "update_character_info"
	KindUpdateAffiliations    Kind = "update_affiliations"
)

// Kinds lists every job kind, for registry coverage checks.
func Kinds() []Kind {
	return []Kind{
		KindUpdateFactionInfo,
		KindUpdateAllianceInfo,
		KindUpdateCorporationInfo,
		KindUpdateCharacterInfo,
		KindUpdateAffiliations,
	}
}

// Job is one unit of refresh work. It is a closed sum type: the five
// variants below are the only implementations, and consumers dispatch with
// an exhaustive type switch.
//
// Identity returns the canonical serialization used as the queue member and
// dedup key. Two jobs with the same semantic content serialize identically
// regardless of construction order, so batch variants sort their id lists
// before encoding. ParseJob is the inverse.
type Job interface {
	fmt.Stringer

	// Kind returns the variant tag.
	Kind() Kind

	// Identity returns the canonical serialization of the job.
	Identity() string

	isJob()
}

// UpdateFactionInfo refreshes all NPC faction records. A single job covers
// every faction; the handler decides whether the cached set has expired.
type UpdateFactionInfo struct{}

func (UpdateFactionInfo) Kind() Kind       { return KindUpdateFactionInfo }
func (UpdateFactionInfo) Identity() string { return string(KindUpdateFactionInfo) }
func (UpdateFactionInfo) String() string   { return string(KindUpdateFactionInfo) }
func (UpdateFactionInfo) isJob()           {}

// UpdateAllianceInfo refreshes metadata for one alliance.
type UpdateAllianceInfo struct {
	AllianceID int64
}

func (UpdateAllianceInfo) Kind() Kind { return KindUpdateAllianceInfo }

func (j UpdateAllianceInfo) Identity() string {
	return identityWithID(KindUpdateAllianceInfo, j.AllianceID)
}

func (j UpdateAllianceInfo) String() string {
	return fmt.Sprintf("%s alliance_id=%d", KindUpdateAllianceInfo, j.AllianceID)
}

func (UpdateAllianceInfo) isJob() {}

// UpdateCorporationInfo refreshes metadata for one corporation.
type UpdateCorporationInfo struct {
	CorporationID int64
}

func (UpdateCorporationInfo) Kind() Kind { return KindUpdateCorporationInfo }

func (j UpdateCorporationInfo) Identity() string {
	return identityWithID(KindUpdateCorporationInfo, j.CorporationID)
}

func (j UpdateCorporationInfo) String() string {
	return fmt.Sprintf("%s corporation_id=%d", KindUpdateCorporationInfo, j.CorporationID)
}

func (UpdateCorporationInfo) isJob() {}

// UpdateCharacterInfo refreshes metadata for one character.
type UpdateCharacterInfo struct {
	CharacterID int64
}

func (UpdateCharacterInfo) Kind() Kind { return KindUpdateCharacterInfo }

func (j UpdateCharacterInfo) Identity() string {
	return identityWithID(KindUpdateCharacterInfo, j.CharacterID)
}

func (j UpdateCharacterInfo) String() string {
	return fmt.Sprintf("%s character_id=%d", KindUpdateCharacterInfo, j.CharacterID)
}

func (UpdateCharacterInfo) isJob() {}

// UpdateAffiliations refreshes corporation/alliance/faction affiliations
// for a batch of characters via the bulk affiliation endpoint. Batches
// carry at most 1000 ids per upstream request limit; producers enforce the
// cap, the job itself does not.
type UpdateAffiliations struct {
	CharacterIDs []int64
}

func (UpdateAffiliations) Kind() Kind { return KindUpdateAffiliations }

// Identity sorts a copy of the id list so that batches with the same member
// set canonicalize identically no matter how they were assembled.
func (j UpdateAffiliations) Identity() string {
	ids := slices.Clone(j.CharacterIDs)
	slices.Sort(ids)

	var b strings.Builder
	b.WriteString(string(KindUpdateAffiliations))
	b.WriteByte(':')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

// String condenses large batches to a sample plus the total count so log
// lines stay readable: all ids for batches of five or fewer, otherwise the
// first three and last two.
func (j UpdateAffiliations) String() string {
	ids := j.CharacterIDs
	if len(ids) <= 5 {
		return fmt.Sprintf("%s character_ids=%v", KindUpdateAffiliations, ids)
	}
	return fmt.Sprintf("%s character_ids=[%d %d %d ... %d %d] (%d total)",
		KindUpdateAffiliations,
		ids[0], ids[1], ids[2], ids[len(ids)-2], ids[len(ids)-1], len(ids))
}

func (UpdateAffiliations) isJob() {}

// ScheduledJob pairs a popped job with the time it was scheduled to run
// (the queue entry's score). Handlers use the timestamp to distinguish jobs
// scheduled before a maintenance window from jobs mistakenly scheduled
// inside one.
type ScheduledJob struct {
	Job         Job
	ScheduledAt time.Time
}

func (s ScheduledJob) String() string {
	return fmt.Sprintf("%s (scheduled at %s)", s.Job, s.ScheduledAt.UTC().Format(time.RFC3339))
}

func identityWithID(k Kind, id int64) string {
	return string(k) + ":" + strconv.FormatInt(id, 10)
}

// ValidateJob reports whether the job can round-trip through its
// identity string. The only rejected shape is an affiliation batch with
// no character ids, whose identity would parse back as malformed.
func ValidateJob(j Job) error {
	if a, ok := j.(UpdateAffiliations); ok && len(a.CharacterIDs) == 0 {
		return fmt.Errorf("%w: affiliation batch has no character ids", ErrInvalidIdentity)
	}
	return nil
}

// ParseJob rebuilds a Job from its canonical identity string.
func ParseJob(identity string) (Job, error) {
	kind, rest, hasArgs := strings.Cut(identity, ":")

	switch Kind(kind) {
	case KindUpdateFactionInfo:
		if hasArgs {
			return nil, fmt.Errorf("%w: %q: unexpected arguments", ErrInvalidIdentity, identity)
		}
		return UpdateFactionInfo{}, nil

	case KindUpdateAllianceInfo:
		id, err := parseIdentityID(identity, rest, hasArgs)
		if err != nil {
			return nil, err
		}
		return UpdateAllianceInfo{AllianceID: id}, nil

	case KindUpdateCorporationInfo:
		id, err := parseIdentityID(identity, rest, hasArgs)
		if err != nil {
			return nil, err
		}
		return UpdateCorporationInfo{CorporationID: id}, nil

	case KindUpdateCharacterInfo:
		id, err := parseIdentityID(identity, rest, hasArgs)
		if err != nil {
			return nil, err
		}
		return UpdateCharacterInfo{CharacterID: id}, nil

	case KindUpdateAffiliations:
		if !hasArgs || rest == "" {
			return nil, fmt.Errorf("%w: %q: missing character ids", ErrInvalidIdentity, identity)
		}
		parts := strings.Split(rest, ",")
		ids := make([]int64, 0, len(parts))
		for _, p := range parts {
			id, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: bad character id %q", ErrInvalidIdentity, identity, p)
			}
			ids = append(ids, id)
		}
		return UpdateAffiliations{CharacterIDs: ids}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobKind, identity)
	}
}

func parseIdentityID(identity, rest string, hasArgs bool) (int64, error) {
	if !hasArgs || rest == "" {
		return 0, fmt.Errorf("%w: %q: missing id", ErrInvalidIdentity, identity)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: bad id %q", ErrInvalidIdentity, identity, rest)
	}
	return id, nil
}
