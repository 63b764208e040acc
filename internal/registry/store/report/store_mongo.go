package report

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	platformmongo "docverify/internal/platform/mongo"
	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
)

// MongoStore persists reports in MongoDB.
type MongoStore struct {
	db   *mongo.Database
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, coll: db.Collection(platformmongo.ReportsCollection)}
}

type reportDocument struct {
	ID             string    `bson:"_id"`
	Seq            int64     `bson:"seq"`
	DoctorName     string    `bson:"doctorName"`
	LicenseNumber  string    `bson:"licenseNumber,omitempty"`
	Location       string    `bson:"location"`
	ConcernType    string    `bson:"concernType"`
	Description    string    `bson:"description"`
	ContactEmail   string    `bson:"contactEmail,omitempty"`
	Status         string    `bson:"status"`
	Priority       string    `bson:"priority"`
	Resolved       bool      `bson:"resolved"`
	ReportDate     time.Time `bson:"reportDate"`
	UpdatedAt      time.Time `bson:"updatedAt"`
	ReporterIP     string    `bson:"reporterIp,omitempty"`
	ReporterDevice string    `bson:"reporterDevice,omitempty"`
}

func (s *MongoStore) Create(ctx context.Context, r *models.Report) error {
	seq, err := platformmongo.NextSeq(ctx, s.db, platformmongo.ReportsCollection)
	if err != nil {
		return err
	}
	doc := toReportDocument(r)
	doc.Seq = seq
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	var doc reportDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": reportID.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return doc.toModel()
}

func (s *MongoStore) List(ctx context.Context, filter models.ReportFilter) iter.Seq2[*models.Report, error] {
	return func(yield func(*models.Report, error) bool) {
		cur, err := s.coll.Find(ctx, reportQuery(filter), options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
		if err != nil {
			yield(nil, fmt.Errorf("list reports: %w", err))
			return
		}
		defer func() { _ = cur.Close(context.Background()) }()
		for cur.Next(ctx) {
			var doc reportDocument
			if err := cur.Decode(&doc); err != nil {
				yield(nil, fmt.Errorf("decode report: %w", err))
				return
			}
			r, err := doc.toModel()
			if !yield(r, err) || err != nil {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, fmt.Errorf("list reports: %w", err))
		}
	}
}

func (s *MongoStore) Count(ctx context.Context, filter models.ReportFilter) (int, error) {
	n, err := s.coll.CountDocuments(ctx, reportQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return int(n), nil
}

// Execute filters the update on the status it validated against, so two
// concurrent advances cannot both apply.
func (s *MongoStore) Execute(ctx context.Context, reportID id.ReportID, validate func(*models.Report) error, mutate func(*models.Report)) (*models.Report, error) {
	r, err := s.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := validate(r); err != nil {
		return nil, err
	}
	previous := r.Status
	mutate(r)

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": reportID.String(), "status": string(previous)},
		bson.M{"$set": bson.M{
			"status":    string(r.Status),
			"resolved":  r.Resolved,
			"updatedAt": r.UpdatedAt,
		}},
	)
	if err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, sentinel.ErrConflict
	}
	return r, nil
}

func reportQuery(filter models.ReportFilter) bson.M {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.Priority != "" {
		q["priority"] = string(filter.Priority)
	}
	if filter.ConcernType != "" {
		q["concernType"] = string(filter.ConcernType)
	}
	if filter.OpenOnly {
		q["resolved"] = false
	}
	return q
}

func toReportDocument(r *models.Report) reportDocument {
	return reportDocument{
		ID:             r.ID.String(),
		DoctorName:     r.DoctorName,
		LicenseNumber:  r.LicenseNumber,
		Location:       r.Location,
		ConcernType:    string(r.ConcernType),
		Description:    r.Description,
		ContactEmail:   r.ContactEmail,
		Status:         string(r.Status),
		Priority:       string(r.Priority),
		Resolved:       r.Resolved,
		ReportDate:     r.ReportDate,
		UpdatedAt:      r.UpdatedAt,
		ReporterIP:     r.Reporter.ClientIP,
		ReporterDevice: r.Reporter.Device,
	}
}

func (doc reportDocument) toModel() (*models.Report, error) {
	rawID, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("report %q: invalid id: %w", doc.ID, err)
	}
	return &models.Report{
		ID: id.ReportID(rawID),
		ReportContent: models.ReportContent{
			DoctorName:    doc.DoctorName,
			LicenseNumber: doc.LicenseNumber,
			Location:      doc.Location,
			ConcernType:   models.ConcernType(doc.ConcernType),
			Description:   doc.Description,
			ContactEmail:  doc.ContactEmail,
		},
		Status:     models.ReportStatus(doc.Status),
		Priority:   models.Priority(doc.Priority),
		Resolved:   doc.Resolved,
		ReportDate: doc.ReportDate.UTC(),
		UpdatedAt:  doc.UpdatedAt.UTC(),
		Reporter: models.Reporter{
			ClientIP: doc.ReporterIP,
			Device:   doc.ReporterDevice,
		},
	}, nil
}
