package store

import (
	"github.com/autumn-order/bifrost-sub000/queue"
	"github.com/autumn-order/bifrost-sub000/track"
)

// Store is the aggregate persistence interface. The queue half holds
// pending jobs; the tracking half answers staleness queries against
// the entity tables. A backend implementing both can serve a whole
// engine on its own; most deployments instead pair a queue backend
// with a tracking backend.
type Store interface {
	queue.Store
	track.Store
}
