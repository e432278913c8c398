package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"school-service/internal/models"
)

// MongoResultRepo is the document-store implementation of ResultRepository.
type MongoResultRepo struct {
	col *mongo.Collection
}

// NewMongoResultRepo constructs a MongoResultRepo.
func NewMongoResultRepo(db *mongo.Database) *MongoResultRepo {
	return &MongoResultRepo{col: db.Collection("results")}
}

// CreateResult inserts a result document.
func (r *MongoResultRepo) CreateResult(ctx context.Context, result *models.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := mongoNow()
	result.CreatedAt, result.UpdatedAt = now, now

	_, err := r.col.InsertOne(ctx, result)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateResult
	}
	return err
}

// GetResult fetches a result by id.
func (r *MongoResultRepo) GetResult(ctx context.Context, resultID string) (models.Result, error) {
	return r.findOne(ctx, bson.M{"_id": resultID})
}

// FindBySubmission fetches the result grading a submission.
func (r *MongoResultRepo) FindBySubmission(ctx context.Context, submissionID string) (models.Result, error) {
	return r.findOne(ctx, bson.M{"submission_id": submissionID})
}

// ListResults returns results matching filter ordered by creation.
func (r *MongoResultRepo) ListResults(ctx context.Context, filter models.ResultFilter) ([]models.Result, error) {
	query := bson.M{}
	if filter.StudentID != "" {
		query["student_id"] = filter.StudentID
	}
	if filter.ExamID != "" {
		query["exam_id"] = filter.ExamID
	}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	cursor, err := r.col.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := []models.Result{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateMarks writes marks and derived fields while the status still equals expected.
func (r *MongoResultRepo) UpdateMarks(ctx context.Context, result *models.Result, expected models.ResultStatus) error {
	now := mongoNow()
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": result.ID, "status": expected},
		bson.M{"$set": bson.M{
			"marks_obtained": result.MarksObtained,
			"total_marks":    result.TotalMarks,
			"passing_marks":  result.PassingMarks,
			"percentage":     result.Percentage,
			"grade":          result.Grade,
			"outcome":        result.Outcome,
			"remarks":        result.Remarks,
			"graded_by":      result.GradedBy,
			"updated_at":     now,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStaleResult
	}
	result.UpdatedAt = now
	return nil
}

// UpdateStatus moves a result between statuses as a compare-and-set.
func (r *MongoResultRepo) UpdateStatus(ctx context.Context, resultID string, from, to models.ResultStatus) (models.Result, error) {
	var result models.Result
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": resultID, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": mongoNow()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Result{}, ErrStaleResult
	}
	return result, err
}

func (r *MongoResultRepo) findOne(ctx context.Context, filter bson.M) (models.Result, error) {
	var result models.Result
	err := r.col.FindOne(ctx, filter).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Result{}, ErrResultNotFound
	}
	return result, err
}

var (
	_ ResultRepository  = (*ResultRepo)(nil)
	_ ResultRepository  = (*MongoResultRepo)(nil)
	_ MessageRepository = (*MessageRepo)(nil)
	_ MessageRepository = (*MongoMessageRepo)(nil)
)
