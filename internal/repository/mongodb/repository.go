package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/campcheck/internal/domain/models"
)

const (
	campersCollection  = "campers"
	sessionsCollection = "sessions"
)

// MongoDBRepository stores the roster and closed sessions.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// SaveCamper upserts a camper by id.
func (r *MongoDBRepository) SaveCamper(ctx context.Context, camper models.Camper) error {
	_, err := r.db.Collection(campersCollection).ReplaceOne(ctx,
		bson.M{"_id": camper.ID},
		camper,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save camper %s: %w", camper.ID, err)
	}
	return nil
}

// ListCampers returns every stored camper in registration order.
func (r *MongoDBRepository) ListCampers(ctx context.Context) ([]models.Camper, error) {
	opts := options.Find().SetSort(bson.D{{Key: "registered_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.db.Collection(campersCollection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query campers: %w", err)
	}

	campers := make([]models.Camper, 0)
	if err := cur.All(ctx, &campers); err != nil {
		return nil, fmt.Errorf("failed to decode campers: %w", err)
	}
	return campers, nil
}

// SaveSession stores a closed session and its report. The session id is the document id.
func (r *MongoDBRepository) SaveSession(ctx context.Context, record models.SessionRecord) error {
	_, err := r.db.Collection(sessionsCollection).InsertOne(ctx, sessionDocument{
		ID:            record.Session.ID,
		SessionRecord: record,
	})
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", record.Session.ID, err)
	}
	return nil
}

// ListSessions returns closed sessions oldest first.
func (r *MongoDBRepository) ListSessions(ctx context.Context) ([]models.SessionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "session.ended_at", Value: 1}})
	cur, err := r.db.Collection(sessionsCollection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	var docs []sessionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	records := make([]models.SessionRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.SessionRecord)
	}
	return records, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

type sessionDocument struct {
	ID                   string `bson:"_id"`
	models.SessionRecord `bson:",inline"`
}
