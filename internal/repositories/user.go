package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hazelvane/beatmigrate/internal/models"
	"github.com/hazelvane/beatmigrate/internal/shared"
)

// UserRepository implements [models.Repository] semantics for [models.User]
// plus the identity-keyed get-or-create used at login.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	user.SetSequence(sequence)
	user.SetID(shared.GenerateID())

	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO users (id, sequence, email, display_name, avatar_url, tier, is_active, created_at, updated_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var email any = user.Email()
	if email == "" {
		email = nil
	}

	_, err = r.db.Exec(query,
		user.ID(), user.Sequence(), email, user.DisplayName(), user.AvatarURL(),
		user.Tier(), user.IsActive(), user.CreatedAt(), user.UpdatedAt(), user.LastLoginAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `
		SELECT id, sequence, email, display_name, avatar_url, tier, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE id = ?
	`
	return r.scan(r.db.QueryRow(query, id))
}

// GetByIdentity retrieves the user linked to an external provider identity.
func (r *UserRepository) GetByIdentity(provider, providerUserID string) (*models.User, error) {
	query := `
		SELECT u.id, u.sequence, u.email, u.display_name, u.avatar_url, u.tier, u.is_active, u.created_at, u.updated_at, u.last_login_at
		FROM users u
		JOIN user_identities i ON i.user_id = u.id
		WHERE i.provider = ? AND i.provider_user_id = ?
	`
	return r.scan(r.db.QueryRow(query, provider, providerUserID))
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	user.SetUpdatedAt(now)

	var email any = user.Email()
	if email == "" {
		email = nil
	}

	query := `
		UPDATE users
		SET email = ?, display_name = ?, avatar_url = ?, tier = ?, is_active = ?, updated_at = ?, last_login_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		email, user.DisplayName(), user.AvatarURL(), user.Tier(), user.IsActive(),
		now, user.LastLoginAt(), user.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found: %s", user.ID())
	}

	return nil
}

// GetOrCreate resolves a provider login to an internal user, creating the user
// and identity link on first login. Returns the user and whether it is new.
func (r *UserRepository) GetOrCreate(provider, providerUserID, email, displayName, avatarURL string) (*models.User, bool, error) {
	now := time.Now().UTC()

	if user, err := r.GetByIdentity(provider, providerUserID); err == nil {
		user.SetLastLoginAt(&now)
		if displayName != "" {
			user.SetDisplayName(displayName)
		}
		if avatarURL != "" {
			user.SetAvatarURL(avatarURL)
		}
		if err := r.Update(user); err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	user := models.NewUser(0, email, displayName)
	user.SetAvatarURL(avatarURL)
	user.SetLastLoginAt(&now)

	if err := r.Create(user); err != nil {
		return nil, false, err
	}

	_, err := r.db.Exec(`
		INSERT INTO user_identities (id, user_id, provider, provider_user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, shared.GenerateID(), user.ID(), provider, providerUserID, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to link identity: %w", err)
	}

	// Seed the empty insight cache row alongside the user.
	_, err = r.db.Exec(`
		INSERT OR IGNORE INTO spotify_cache (user_id, updated_at) VALUES (?, ?)
	`, user.ID(), now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to seed cache row: %w", err)
	}

	return user, true, nil
}

func (r *UserRepository) scan(row *sql.Row) (*models.User, error) {
	var (
		id          string
		sequence    int
		email       sql.NullString
		displayName sql.NullString
		avatarURL   sql.NullString
		tier        string
		isActive    bool
		createdAt   time.Time
		updatedAt   time.Time
		lastLoginAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &email, &displayName, &avatarURL, &tier, &isActive, &createdAt, &updatedAt, &lastLoginAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user := models.NewUser(sequence, email.String, displayName.String)
	user.SetID(id)
	user.SetAvatarURL(avatarURL.String)
	user.SetTier(tier)
	user.SetIsActive(isActive)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if lastLoginAt.Valid {
		user.SetLastLoginAt(&lastLoginAt.Time)
	}

	return user, nil
}
