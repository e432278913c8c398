package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"school-service/internal/config"
)

// Connect opens the PostgreSQL database and runs migrations.
func Connect(ctx context.Context, cfg config.StoreConfig) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            sender_id TEXT NOT NULL,
            subject VARCHAR(100) NOT NULL,
            body TEXT NOT NULL,
            parent_message_id UUID REFERENCES messages(id),
            attachments JSONB NOT NULL DEFAULT '[]',
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS messages_parent_idx ON messages(parent_message_id);`,
		`CREATE INDEX IF NOT EXISTS messages_sender_idx ON messages(sender_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS message_recipients (
            message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            read_at TIMESTAMPTZ,
            PRIMARY KEY(message_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS message_recipients_user_idx ON message_recipients(user_id);`,
		`CREATE TABLE IF NOT EXISTS message_deletions (
            message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            deleted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(message_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS results (
            id UUID PRIMARY KEY,
            kind TEXT NOT NULL,
            student_id TEXT NOT NULL,
            subject_id TEXT,
            exam_id TEXT,
            assignment_id TEXT,
            submission_id TEXT UNIQUE,
            marks_obtained DOUBLE PRECISION NOT NULL CHECK (marks_obtained >= 0),
            total_marks DOUBLE PRECISION NOT NULL CHECK (total_marks > 0),
            passing_marks DOUBLE PRECISION NOT NULL,
            percentage DOUBLE PRECISION NOT NULL,
            grade TEXT NOT NULL,
            outcome TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'Draft',
            remarks TEXT NOT NULL DEFAULT '',
            graded_by TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (marks_obtained <= total_marks)
        );`,
		`CREATE INDEX IF NOT EXISTS results_student_idx ON results(student_id, created_at);`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}

// ConnectMongo opens the document store and ensures the indexes the
// repositories rely on.
func ConnectMongo(ctx context.Context, cfg config.StoreConfig) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	database := client.Database(cfg.MongoDB)
	indexes := map[string][]mongo.IndexModel{
		"messages": {
			{Keys: bson.D{{Key: "parent_message_id", Value: 1}}},
			{Keys: bson.D{{Key: "recipients.user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		"results": {
			{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{
				Keys:    bson.D{{Key: "submission_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"submission_id": bson.M{"$exists": true}}),
			},
		},
	}
	for collection, models := range indexes {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("create %s indexes: %w", collection, err)
		}
	}
	log.Printf("mongo indexes ensured db=%s", cfg.MongoDB)
	return client, database, nil
}
