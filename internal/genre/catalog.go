package genre

import (
	"sync"

	"github.com/cinelog/cinelog/internal/database"
	"github.com/cinelog/cinelog/internal/event"
	"github.com/cinelog/cinelog/pkg/logger"
)

var log = logger.Get("GenreCatalog")

// Catalog keeps a warm in-memory snapshot of the genre table so that
// id-to-name lookups during aggregation mapping are pure map reads rather
// than per-call queries. The snapshot is replaced wholesale on every
// GENRE_UPDATE event, never mutated in place, so readers can never observe
// a torn state.
type Catalog struct {
	mu    sync.RWMutex
	store *Store
	db    database.Queryable
	names map[int]string
}

// NewCatalog builds a catalog, primes its snapshot and subscribes it to
// the event bus for refreshes. The subscription lives as long as the
// process; the catalog has no independent teardown.
func NewCatalog(db database.Queryable, store *Store, bus event.EventHandler) *Catalog {
	catalog := &Catalog{store: store, db: db, names: make(map[int]string)}
	catalog.refresh()

	bus.RegisterAsyncHandlerFunction(event.GENRE_UPDATE, func(event.Event, event.Payload) {
		catalog.refresh()
	})

	return catalog
}

// NamesByIDs resolves the provided external genre IDs to display labels
// using the latest snapshot. Unknown IDs are skipped rather than producing
// placeholder entries.
func (catalog *Catalog) NamesByIDs(ids []int) []string {
	catalog.mu.RLock()
	names := catalog.names
	catalog.mu.RUnlock()

	resolved := make([]string, 0, len(ids))
	for _, id := range ids {
		if label, ok := names[id]; ok {
			resolved = append(resolved, label)
		}
	}

	return resolved
}

func (catalog *Catalog) refresh() {
	genres, err := catalog.store.List(catalog.db)
	if err != nil {
		log.Warnf("Snapshot refresh failed, retaining previous snapshot: %s\n", err.Error())
		return
	}

	snapshot := make(map[int]string, len(genres))
	for _, g := range genres {
		snapshot[g.ID] = g.Label
	}

	catalog.mu.Lock()
	catalog.names = snapshot
	catalog.mu.Unlock()
}
