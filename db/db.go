package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ticketdesk/config"
)

// Open connects to Postgres, applies the pool limits and runs Migrate.
func Open(ctx context.Context, cfg config.DBConfig) (*sqlx.DB, error) {
	sqldb, err := sqlx.ConnectContext(ctx, "postgres", cfg.DataSource)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := Migrate(ctx, sqldb); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return sqldb, nil
}

var migrations = []struct {
	name string
	stmt string
}{
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		organization_id BIGINT
	);`},
	{"organizations", `
	CREATE TABLE IF NOT EXISTS organizations (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		contact_website TEXT NOT NULL DEFAULT '',
		owner_id BIGINT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"organization_followers", `
	CREATE TABLE IF NOT EXISTS organization_followers (
		organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (organization_id, user_id)
	);`},
	// event_id 用 UUID（events 在 Mongo）
	{"tickets", `
	CREATE TABLE IF NOT EXISTS tickets (
		id BIGSERIAL PRIMARY KEY,
		event_id UUID NOT NULL,
		user_id BIGINT NOT NULL REFERENCES users(id),
		ticket_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		order_number TEXT NOT NULL UNIQUE,
		seat_section TEXT NOT NULL DEFAULT '',
		seat_row TEXT NOT NULL DEFAULT '',
		seat_number INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"tickets_event_idx", `
	CREATE INDEX IF NOT EXISTS tickets_event_created_idx ON tickets (event_id, created_at);`},
}

// Migrate creates the relational schema. It is idempotent.
func Migrate(ctx context.Context, sqldb *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := sqldb.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("create %s: %w", m.name, err)
		}
	}
	return nil
}

// OpenMongo connects to MongoDB and returns the client and the events
// collection with its unique id index in place.
func OpenMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Collection, error) {
	mg, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := mg.Ping(ctx, nil); err != nil {
		_ = mg.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	col := mg.Database(cfg.Database).Collection("events")
	_, err = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "startDate", Value: 1}}},
	})
	if err != nil {
		_ = mg.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("create event indexes: %w", err)
	}
	return mg, col, nil
}
