package models

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"ticketdesk/utils"
)

type sqlUserRepo struct{ db *sqlx.DB }

func NewSQLUserRepository(db *sqlx.DB) UserRepository { return &sqlUserRepo{db} }

func (r *sqlUserRepo) Create(ctx context.Context, u *User) error {
	// u.Password 進來是明碼 → 先雜湊
	hashed, err := utils.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hashed
	if u.Role == "" {
		u.Role = RoleUser
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO users(name, email, password, role) VALUES ($1,$2,$3,$4) RETURNING id`,
		u.Name, u.Email, u.Password, u.Role).Scan(&u.ID)
	return translate(err)
}

func (r *sqlUserRepo) ValidateCredentials(ctx context.Context, email, plain string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, name, email, password, role, organization_id FROM users WHERE email=$1`, email)
	if err != nil {
		if errors.Is(translate(err), ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if !utils.CheckPasswordHash(plain, u.Password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (r *sqlUserRepo) GetByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, name, email, role, organization_id FROM users WHERE id=$1`, id)
	if err != nil {
		return User{}, translate(err)
	}
	return u, nil
}

func (r *sqlUserRepo) Update(ctx context.Context, u *User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name=$1, email=$2 WHERE id=$3`, u.Name, u.Email, u.ID)
	if err != nil {
		return translate(err)
	}
	return affected(res)
}

func (r *sqlUserRepo) SetOrganization(ctx context.Context, userID, orgID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET organization_id=$1 WHERE id=$2 AND organization_id IS NULL`, orgID, userID)
	if err != nil {
		return translate(err)
	}
	if err := affected(res); !errors.Is(err, ErrNotFound) {
		return err
	}
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID); err != nil {
		return err
	}
	if exists {
		return ErrDuplicate
	}
	return ErrNotFound
}
