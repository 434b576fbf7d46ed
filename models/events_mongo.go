package models

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 5 * time.Second

type mongoEventRepo struct {
	col *mongo.Collection
}

func NewMongoEventRepository(col *mongo.Collection) EventRepository {
	return &mongoEventRepo{col: col}
}

func (r *mongoEventRepo) GetAll(ctx context.Context, f EventFilter) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.OrganizationID != 0 {
		filter["organizationId"] = f.OrganizationID
	}

	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Event{}
	for cur.Next(ctx) {
		var e Event
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

func (r *mongoEventRepo) GetByID(ctx context.Context, id string) (Event, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var e Event
	if err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	return e, nil
}

func (r *mongoEventRepo) Create(ctx context.Context, e *Event) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	_, err := r.col.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *mongoEventRepo) Update(ctx context.Context, e *Event) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	res, err := r.col.UpdateOne(ctx, bson.M{"id": e.ID}, bson.M{"$set": e})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoEventRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	res, err := r.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
