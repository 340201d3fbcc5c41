// package quota enforces per-user, per-action daily limits over the api_usage
// table.
//
// Reservation is an atomic increment-and-compare inside one transaction, so
// concurrent requests from the same user cannot overrun the limit. Quota is
// consumed on attempt, not on success: a reservation is never refunded.
package quota

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hazelvane/beatmigrate/internal/shared"
)

// Actions with daily quota windows.
const (
	ActionMigration  = "migration"
	ActionFetchLiked = "fetch_liked"
)

// Gate admits or rejects requests against daily quota windows. Windows roll
// over naturally as the UTC date advances; old rows are left behind for
// analytics and never deleted.
type Gate struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// NewGate creates a quota gate over the given database.
func NewGate(db *sql.DB, logger *log.Logger) *Gate {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Gate{
		db:     db,
		logger: logger.With("component", "quota"),
		now:    time.Now,
	}
}

func (g *Gate) window() string {
	return g.now().UTC().Format("2006-01-02")
}

// CheckAndReserve atomically consumes one attempt from the user's daily window
// for the action. Returns whether the attempt was admitted and how many
// attempts remain after it.
func (g *Gate) CheckAndReserve(userID, action string, dailyLimit int) (bool, int, error) {
	window := g.window()

	tx, err := g.db.Begin()
	if err != nil {
		return false, 0, fmt.Errorf("%w: begin: %v", shared.ErrPersistence, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO api_usage (id, user_id, action, count, tracks_count, window_start)
		VALUES (?, ?, ?, 0, 0, ?)
		ON CONFLICT (user_id, action, window_start) DO NOTHING
	`, shared.GenerateID(), userID, action, window)
	if err != nil {
		return false, 0, fmt.Errorf("%w: ensure window: %v", shared.ErrPersistence, err)
	}

	var count int
	err = tx.QueryRow(`
		SELECT count FROM api_usage WHERE user_id = ? AND action = ? AND window_start = ?
	`, userID, action, window).Scan(&count)
	if err != nil {
		return false, 0, fmt.Errorf("%w: read window: %v", shared.ErrPersistence, err)
	}

	if count >= dailyLimit {
		return false, 0, nil
	}

	_, err = tx.Exec(`
		UPDATE api_usage SET count = count + 1
		WHERE user_id = ? AND action = ? AND window_start = ?
	`, userID, action, window)
	if err != nil {
		return false, 0, fmt.Errorf("%w: reserve: %v", shared.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("%w: commit: %v", shared.ErrPersistence, err)
	}

	return true, dailyLimit - count - 1, nil
}

// Commit records how many items the admitted attempt actually processed.
func (g *Gate) Commit(userID, action string, itemCount int) error {
	_, err := g.db.Exec(`
		UPDATE api_usage SET tracks_count = tracks_count + ?
		WHERE user_id = ? AND action = ? AND window_start = ?
	`, itemCount, userID, action, g.window())
	if err != nil {
		return fmt.Errorf("%w: commit usage: %v", shared.ErrPersistence, err)
	}
	return nil
}

// Usage reports how many attempts the user has consumed today for the action.
func (g *Gate) Usage(userID, action string) (int, error) {
	var count int
	err := g.db.QueryRow(`
		SELECT count FROM api_usage WHERE user_id = ? AND action = ? AND window_start = ?
	`, userID, action, g.window()).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read usage: %v", shared.ErrPersistence, err)
	}
	return count, nil
}
