package doctor

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

// maxExecuteAttempts bounds optimistic retries when a concurrent writer bumps the version.
const maxExecuteAttempts = 5

// MongoStore persists doctors in MongoDB. Execute uses a version-filtered
// replace, so a concurrent writer forces a re-read instead of a lost update.
type MongoStore struct {
	db   *mongo.Database
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, coll: db.Collection(platformmongo.DoctorsCollection)}
}

type verificationDocument struct {
	VerifiedDate  time.Time `bson:"verifiedDate"`
	ExpiryDate    time.Time `bson:"expiryDate"`
	LedgerReceipt string    `bson:"ledgerReceipt"`
	ApprovedBy    string    `bson:"approvedBy"`
}

type rejectionDocument struct {
	RejectedDate time.Time `bson:"rejectedDate"`
	Reason       string    `bson:"reason"`
	RejectedBy   string    `bson:"rejectedBy"`
}

type doctorDocument struct {
	ID             string                `bson:"_id"`
	Seq            int64                 `bson:"seq"`
	Version        int64                 `bson:"version"`
	LicenseNumber  string                `bson:"licenseNumber"`
	Name           string                `bson:"name"`
	Email          string                `bson:"email"`
	Specialization string                `bson:"specialization"`
	Institution    string                `bson:"institution"`
	GraduationYear int                   `bson:"graduationYear"`
	Address        string                `bson:"address"`
	Bio            string                `bson:"bio"`
	Documents      []string              `bson:"documents"`
	Status         string                `bson:"status"`
	IsActive       bool                  `bson:"isActive"`
	SubmittedDate  time.Time             `bson:"submittedDate"`
	UpdatedAt      time.Time             `bson:"updatedAt"`
	Verification   *verificationDocument `bson:"verification,omitempty"`
	Rejection      *rejectionDocument    `bson:"rejection,omitempty"`
}

func (s *MongoStore) Create(ctx context.Context, d *models.Doctor) error {
	seq, err := platformmongo.NextSeq(ctx, s.db, platformmongo.DoctorsCollection)
	if err != nil {
		return err
	}
	doc := toDoctorDocument(d)
	doc.Seq = seq
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, doctorID id.DoctorID) (*models.Doctor, error) {
	d, _, err := s.findOne(ctx, bson.M{"_id": doctorID.String()})
	return d, err
}

func (s *MongoStore) FindByLicense(ctx context.Context, license string) (*models.Doctor, error) {
	d, _, err := s.findOne(ctx, bson.M{"licenseNumber": license})
	return d, err
}

func (s *MongoStore) List(ctx context.Context, filter models.DoctorFilter) iter.Seq2[*models.Doctor, error] {
	return func(yield func(*models.Doctor, error) bool) {
		cur, err := s.coll.Find(ctx, doctorQuery(filter), options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
		if err != nil {
			yield(nil, fmt.Errorf("list doctors: %w", err))
			return
		}
		defer func() { _ = cur.Close(context.Background()) }()
		for cur.Next(ctx) {
			var doc doctorDocument
			if err := cur.Decode(&doc); err != nil {
				yield(nil, fmt.Errorf("decode doctor: %w", err))
				return
			}
			d, err := doc.toModel()
			if !yield(d, err) || err != nil {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, fmt.Errorf("list doctors: %w", err))
		}
	}
}

func (s *MongoStore) Count(ctx context.Context, filter models.DoctorFilter) (int, error) {
	n, err := s.coll.CountDocuments(ctx, doctorQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("count doctors: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) Execute(ctx context.Context, doctorID id.DoctorID, validate func(*models.Doctor) error, mutate func(*models.Doctor)) (*models.Doctor, error) {
	for range maxExecuteAttempts {
		d, raw, err := s.findOne(ctx, bson.M{"_id": doctorID.String()})
		if err != nil {
			return nil, err
		}
		if err := validate(d); err != nil {
			return nil, err
		}
		mutate(d)

		next := toDoctorDocument(d)
		next.Seq = raw.Seq
		next.Version = raw.Version + 1
		res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": raw.ID, "version": raw.Version}, next)
		if err != nil {
			return nil, fmt.Errorf("replace doctor: %w", err)
		}
		if res.MatchedCount == 1 {
			return d, nil
		}
	}
	return nil, sentinel.ErrConflict
}

func (s *MongoStore) findOne(ctx context.Context, query bson.M) (*models.Doctor, *doctorDocument, error) {
	var doc doctorDocument
	if err := s.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, sentinel.ErrNotFound
		}
		return nil, nil, fmt.Errorf("find doctor: %w", err)
	}
	d, err := doc.toModel()
	if err != nil {
		return nil, nil, err
	}
	return d, &doc, nil
}

func doctorQuery(filter models.DoctorFilter) bson.M {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.IsActive != nil {
		q["isActive"] = *filter.IsActive
	}
	if filter.Specialization != "" {
		q["specialization"] = filter.Specialization
	}
	return q
}

func toDoctorDocument(d *models.Doctor) doctorDocument {
	doc := doctorDocument{
		ID:             d.ID.String(),
		LicenseNumber:  d.LicenseNumber,
		Name:           d.Name,
		Email:          d.Email,
		Specialization: d.Specialization,
		Institution:    d.Institution,
		GraduationYear: d.GraduationYear,
		Address:        d.Address,
		Bio:            d.Bio,
		Documents:      append([]string{}, d.Documents...),
		Status:         string(d.Status),
		IsActive:       d.IsActive,
		SubmittedDate:  d.SubmittedDate,
		UpdatedAt:      d.UpdatedAt,
	}
	if v := d.Verification; v != nil {
		doc.Verification = &verificationDocument{
			VerifiedDate:  v.VerifiedDate,
			ExpiryDate:    v.ExpiryDate,
			LedgerReceipt: v.LedgerReceipt,
			ApprovedBy:    v.ApprovedBy,
		}
	}
	if r := d.Rejection; r != nil {
		doc.Rejection = &rejectionDocument{
			RejectedDate: r.RejectedDate,
			Reason:       r.Reason,
			RejectedBy:   r.RejectedBy,
		}
	}
	return doc
}

func (doc doctorDocument) toModel() (*models.Doctor, error) {
	rawID, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("doctor %q: invalid id: %w", doc.ID, err)
	}
	d := &models.Doctor{
		ID:            id.DoctorID(rawID),
		LicenseNumber: doc.LicenseNumber,
		Profile: models.Profile{
			Name:           doc.Name,
			Email:          doc.Email,
			Specialization: doc.Specialization,
			Institution:    doc.Institution,
			GraduationYear: doc.GraduationYear,
			Address:        doc.Address,
			Bio:            doc.Bio,
			Documents:      append([]string{}, doc.Documents...),
		},
		Status:        models.DoctorStatus(doc.Status),
		IsActive:      doc.IsActive,
		SubmittedDate: doc.SubmittedDate.UTC(),
		UpdatedAt:     doc.UpdatedAt.UTC(),
	}
	if v := doc.Verification; v != nil {
		d.Verification = &models.Verification{
			VerifiedDate:  v.VerifiedDate.UTC(),
			ExpiryDate:    v.ExpiryDate.UTC(),
			LedgerReceipt: v.LedgerReceipt,
			ApprovedBy:    v.ApprovedBy,
		}
	}
	if r := doc.Rejection; r != nil {
		d.Rejection = &models.Rejection{
			RejectedDate: r.RejectedDate.UTC(),
			Reason:       r.Reason,
			RejectedBy:   r.RejectedBy,
		}
	}
	if err := d.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("doctor %s: %w", doc.ID, err)
	}
	return d, nil
}
