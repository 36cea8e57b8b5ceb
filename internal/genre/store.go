package genre

import (
	"fmt"

	"github.com/cinelog/cinelog/internal/database"
	"github.com/jmoiron/sqlx"
)

// Genre maps an external genre identifier to its display label. Both sides
// of the mapping can change remotely over time (renames and renumbering),
// so synchronization reconciles rather than appends.
type Genre struct {
	ID    int    `db:"id"`
	Label string `db:"label"`
}

type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Synchronize reconciles the incoming candidate list against the stored
// genre table. Per candidate, in order:
//
//  1. known ID with the same label: no-op
//  2. known ID with a different label: a rename; the old (label, id) pair
//     is replaced by the new one
//  3. unknown ID but the label already exists under a different ID: an id
//     correction; the row is updated in place
//  4. neither known: plain insert
//
// Check 3 must run before falling through to insert, otherwise renumbered
// genres accumulate duplicate display labels. Applying the same candidate
// list twice leaves the table unchanged after the second application.
func (store *Store) Synchronize(tx *sqlx.Tx, candidates []Genre) error {
	existing, err := store.List(tx)
	if err != nil {
		return fmt.Errorf("failed to list genres prior to sync: %w", err)
	}

	labelsByID := make(map[int]string, len(existing))
	idsByLabel := make(map[string]int, len(existing))
	for _, g := range existing {
		labelsByID[g.ID] = g.Label
		idsByLabel[g.Label] = g.ID
	}

	for _, candidate := range candidates {
		if label, known := labelsByID[candidate.ID]; known {
			if label == candidate.Label {
				continue
			}

			if _, err := tx.Exec(`UPDATE genre SET label=$1 WHERE id=$2`, candidate.Label, candidate.ID); err != nil {
				return fmt.Errorf("failed to rename genre %d: %w", candidate.ID, err)
			}

			delete(idsByLabel, label)
			labelsByID[candidate.ID] = candidate.Label
			idsByLabel[candidate.Label] = candidate.ID
			continue
		}

		if oldID, known := idsByLabel[candidate.Label]; known {
			// Renumbered upstream; movie associations follow via the
			// ON UPDATE CASCADE on movie_genres.
			if _, err := tx.Exec(`UPDATE genre SET id=$1 WHERE id=$2`, candidate.ID, oldID); err != nil {
				return fmt.Errorf("failed to renumber genre %q: %w", candidate.Label, err)
			}

			delete(labelsByID, oldID)
			labelsByID[candidate.ID] = candidate.Label
			idsByLabel[candidate.Label] = candidate.ID
			continue
		}

		if _, err := tx.Exec(`INSERT INTO genre(id, label) VALUES($1, $2)`, candidate.ID, candidate.Label); err != nil {
			return fmt.Errorf("failed to insert genre %d (%q): %w", candidate.ID, candidate.Label, err)
		}

		labelsByID[candidate.ID] = candidate.Label
		idsByLabel[candidate.Label] = candidate.ID
	}

	return nil
}

// List returns every stored genre.
func (store *Store) List(db database.Queryable) ([]Genre, error) {
	var results []Genre
	if err := db.Select(&results, `SELECT * FROM genre ORDER BY label ASC`); err != nil {
		return nil, err
	}

	return results, nil
}
