// Package mongostore keeps todo items in the MongoDB "todos" collection with
// camelCase fields and ObjectID keys.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"todo-backend/internal/ranking"
	"todo-backend/internal/todos"
)

const collectionName = "todos"

type document struct {
	ID        primitive.ObjectID `bson:"_id"`
	Text      string             `bson:"text"`
	Completed bool               `bson:"completed"`
	Order     float64            `bson:"order"`
	Priority  string             `bson:"priority"`
	DueDate   *time.Time         `bson:"dueDate,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func toDocument(it todos.Item) (document, error) {
	oid, err := primitive.ObjectIDFromHex(it.ID)
	if err != nil {
		return document{}, fmt.Errorf("object id %q: %w", it.ID, err)
	}
	return document{
		ID:        oid,
		Text:      it.Text,
		Completed: it.Completed,
		Order:     it.Order,
		Priority:  string(it.Priority),
		DueDate:   it.DueDate,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}, nil
}

func (d document) item() todos.Item {
	it := todos.Item{
		ID:        d.ID.Hex(),
		Text:      d.Text,
		Completed: d.Completed,
		Order:     d.Order,
		Priority:  todos.Priority(d.Priority),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if it.Priority == "" {
		it.Priority = todos.PriorityMedium
	}
	if d.DueDate != nil {
		t := d.DueDate.UTC()
		it.DueDate = &t
	}
	return it
}

// displaySort is the canonical display order.
var displaySort = bson.D{
	{Key: "completed", Value: 1},
	{Key: "order", Value: 1},
	{Key: "createdAt", Value: 1},
	{Key: "_id", Value: 1},
}

type Store struct {
	coll *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{coll: db.Collection(collectionName)}
}

// Connect dials uri and returns a store on the named database. The caller
// owns the returned client and must Disconnect it.
func Connect(ctx context.Context, uri, database string) (*Store, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return New(client.Database(database)), client, nil
}

// EnsureIndexes creates the index backing the display order.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "completed", Value: 1},
			{Key: "order", Value: 1},
			{Key: "createdAt", Value: 1},
		},
		Options: options.Index().SetName("display_order"),
	})
	return err
}

func (s *Store) List(ctx context.Context) ([]todos.Item, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(displaySort))
	if err != nil {
		return nil, err
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	items := make([]todos.Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.item())
	}
	return items, nil
}

func (s *Store) Get(ctx context.Context, id string) (todos.Item, error) {
	filter, err := idFilter(id)
	if err != nil {
		return todos.Item{}, err
	}
	var d document
	if err := s.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		return todos.Item{}, notFoundOr(err)
	}
	return d.item(), nil
}

func (s *Store) Insert(ctx context.Context, it todos.Item) error {
	d, err := toDocument(it)
	if err != nil {
		return err
	}
	_, err = s.coll.InsertOne(ctx, d)
	return err
}

func (s *Store) Replace(ctx context.Context, it todos.Item) error {
	d, err := toDocument(it)
	if err != nil {
		return err
	}
	res, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: d.ID}}, d)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return todos.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) (todos.Item, error) {
	filter, err := idFilter(id)
	if err != nil {
		return todos.Item{}, err
	}
	var d document
	if err := s.coll.FindOneAndDelete(ctx, filter).Decode(&d); err != nil {
		return todos.Item{}, notFoundOr(err)
	}
	return d.item(), nil
}

func (s *Store) OrderBounds(ctx context.Context, excludeID string) (ranking.Bounds, error) {
	pipeline, err := boundsPipeline(excludeID)
	if err != nil {
		return ranking.Bounds{}, err
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return ranking.Bounds{}, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return ranking.Bounds{}, err
		}
		return ranking.NoItems, nil
	}
	var out struct {
		Min float64 `bson:"min"`
		Max float64 `bson:"max"`
	}
	if err := cur.Decode(&out); err != nil {
		return ranking.Bounds{}, fmt.Errorf("decode bounds: %w", err)
	}
	return ranking.Bounds{Min: out.Min, Max: out.Max}, nil
}

func boundsPipeline(excludeID string) (mongo.Pipeline, error) {
	match := bson.D{}
	if excludeID != "" {
		oid, err := primitive.ObjectIDFromHex(excludeID)
		if err != nil {
			return nil, fmt.Errorf("object id %q: %w", excludeID, err)
		}
		match = bson.D{{Key: "_id", Value: bson.D{{Key: "$ne", Value: oid}}}}
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "min", Value: bson.D{{Key: "$min", Value: "$order"}}},
			{Key: "max", Value: bson.D{{Key: "$max", Value: "$order"}}},
		}}},
	}, nil
}

// SetOrders checks that every id exists and then applies all ranks with one
// ordered bulk write. Without a replica-set transaction an item deleted
// between the check and the write is skipped rather than rolled back.
func (s *Store) SetOrders(ctx context.Context, ranks []ranking.Rank, updatedAt time.Time) error {
	models, oids, err := orderModels(ranks, updatedAt)
	if err != nil {
		return err
	}

	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}})
	if err != nil {
		return err
	}
	if n != int64(len(oids)) {
		return todos.ErrNotFound
	}

	_, err = s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return err
}

func orderModels(ranks []ranking.Rank, updatedAt time.Time) ([]mongo.WriteModel, []primitive.ObjectID, error) {
	models := make([]mongo.WriteModel, 0, len(ranks))
	oids := make([]primitive.ObjectID, 0, len(ranks))
	for _, r := range ranks {
		oid, err := primitive.ObjectIDFromHex(r.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("object id %q: %w", r.ID, err)
		}
		oids = append(oids, oid)
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: oid}}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{
				{Key: "order", Value: r.Order},
				{Key: "updatedAt", Value: updatedAt},
			}}}))
	}
	return models, oids, nil
}

func idFilter(id string) (bson.D, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("object id %q: %w", id, err)
	}
	return bson.D{{Key: "_id", Value: oid}}, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return todos.ErrNotFound
	}
	return err
}
