// Package eve binds the scheduling machinery to EVE Online's entity
// tables: the refresh cadence for each entity type, ESI request limits
// and the daily downtime window, and the glue between job kinds and
// the service that talks to ESI.
//
// The cadence constants follow how often each kind of data actually
// changes. Character names and descriptions rarely change, so
// character info carries a 30-day cache; affiliations move whenever a
// player switches corporation, so they refresh hourly in batches of up
// to [ESIAffiliationRequestLimit] ids per job.
package eve
