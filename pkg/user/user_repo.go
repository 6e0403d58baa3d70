package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrUserNotFound = errors.New("user not found")

type Repo interface {
	GetUserByUid(ctx context.Context, uid string) (User, error)
	// GetDisplayNames returns uid -> display name for the uids present in the directory.
	GetDisplayNames(ctx context.Context, uids []string) (map[string]string, error)
}

type UserRepoImpl struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepoImpl {
	return &UserRepoImpl{db: db}
}

func (u *UserRepoImpl) GetUserByUid(ctx context.Context, uid string) (User, error) {
	query := `SELECT id, uid, display_name, role FROM profile WHERE uid = $1`
	var user User
	err := u.db.QueryRow(ctx, query, uid).Scan(&user.Id, &user.Uid, &user.DisplayName, &user.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	} else if err != nil {
		log.Errorf("failed to get user: %v", err)
		return User{}, err
	}
	return user, nil
}

func (u *UserRepoImpl) GetDisplayNames(ctx context.Context, uids []string) (map[string]string, error) {
	names := make(map[string]string, len(uids))
	if len(uids) == 0 {
		return names, nil
	}
	rows, err := u.db.Query(ctx, `SELECT uid, display_name FROM profile WHERE uid = ANY($1)`, uids)
	if err != nil {
		err := fmt.Errorf("could not query display names: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var uid, name string
		if err := rows.Scan(&uid, &name); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		names[uid] = name
	}
	return names, rows.Err()
}
