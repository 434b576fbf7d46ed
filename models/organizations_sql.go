package models

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

type sqlOrganizationRepo struct{ db *sqlx.DB }

func NewSQLOrganizationRepository(db *sqlx.DB) OrganizationRepository {
	return &sqlOrganizationRepo{db}
}

// organizationRow is the flat table shape of Organization.
type organizationRow struct {
	ID             int64     `db:"id"`
	Name           string    `db:"name"`
	Description    string    `db:"description"`
	ContactEmail   string    `db:"contact_email"`
	ContactPhone   string    `db:"contact_phone"`
	ContactWebsite string    `db:"contact_website"`
	OwnerID        int64     `db:"owner_id"`
	CreatedAt      time.Time `db:"created_at"`
}

func (row organizationRow) toModel(followers []int64) Organization {
	if followers == nil {
		followers = []int64{}
	}
	return Organization{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Contact: Contact{
			Email:   row.ContactEmail,
			Phone:   row.ContactPhone,
			Website: row.ContactWebsite,
		},
		Followers: followers,
		OwnerID:   row.OwnerID,
		CreatedAt: row.CreatedAt,
	}
}

func (r *sqlOrganizationRepo) Create(ctx context.Context, o *Organization) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO organizations(name, description, contact_email, contact_phone, contact_website, owner_id)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
		o.Name, o.Description, o.Contact.Email, o.Contact.Phone, o.Contact.Website, o.OwnerID,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return translate(err)
	}
	if o.Followers == nil {
		o.Followers = []int64{}
	}
	return nil
}

func (r *sqlOrganizationRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *sqlOrganizationRepo) GetByID(ctx context.Context, id int64) (Organization, error) {
	var row organizationRow
	if err := r.db.GetContext(ctx, &row,
		`SELECT id, name, description, contact_email, contact_phone, contact_website, owner_id, created_at
		 FROM organizations WHERE id=$1`, id); err != nil {
		return Organization{}, translate(err)
	}

	var followers []int64
	if err := r.db.SelectContext(ctx, &followers,
		`SELECT user_id FROM organization_followers WHERE organization_id=$1 ORDER BY user_id`, id); err != nil {
		return Organization{}, err
	}
	return row.toModel(followers), nil
}

func (r *sqlOrganizationRepo) Update(ctx context.Context, o *Organization) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE organizations
		 SET name=$1, description=$2, contact_email=$3, contact_phone=$4, contact_website=$5
		 WHERE id=$6`,
		o.Name, o.Description, o.Contact.Email, o.Contact.Phone, o.Contact.Website, o.ID)
	if err != nil {
		return translate(err)
	}
	return affected(res)
}

func (r *sqlOrganizationRepo) Follow(ctx context.Context, orgID, userID int64) error {
	// 靠 PRIMARY KEY(organization_id, user_id) 防重複
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organization_followers(organization_id, user_id) VALUES ($1,$2)`, orgID, userID)
	return translate(err)
}

func (r *sqlOrganizationRepo) Unfollow(ctx context.Context, orgID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM organization_followers WHERE organization_id=$1 AND user_id=$2`, orgID, userID)
	if err != nil {
		return err
	}
	return affected(res)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
