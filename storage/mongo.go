package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realestate-ingest/models"
)

const (
	searchesCollection = "searches"
	agenciesCollection = "agencies"
	listingsCollection = "listings"
	resultsCollection  = "search_results"
)

// MongoStore is the document-database backend. Uniqueness of agencies,
// listings and search results is enforced with unique indexes.
type MongoStore struct {
	client   *mongo.Client
	searches *mongo.Collection
	agencies *mongo.Collection
	listings *mongo.Collection
	results  *mongo.Collection
}

// NewMongoStore connects, pings and ensures the unique indexes exist.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		searches: db.Collection(searchesCollection),
		agencies: db.Collection(agenciesCollection),
		listings: db.Collection(listingsCollection),
		results:  db.Collection(resultsCollection),
	}

	if err := s.createIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	indexes := []struct {
		coll *mongo.Collection
		keys bson.D
	}{
		{s.agencies, bson.D{{Key: "profile_url", Value: 1}}},
		{s.listings, bson.D{{Key: "reference_code", Value: 1}}},
		{s.results, bson.D{{Key: "search_id", Value: 1}, {Key: "real_estate_id", Value: 1}}},
	}
	for _, idx := range indexes {
		_, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    idx.keys,
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("mongo: create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mapMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// searchDocument mirrors the API service's search record, filter embedded.
type searchDocument struct {
	ID          uuid.UUID      `bson:"_id"`
	Filter      filterDocument `bson:"filter"`
	QueryStatus string         `bson:"query_status"`
	Found       int            `bson:"number_real_estate_found"`
}

type filterDocument struct {
	PropertyTypes    []string `bson:"property_type"`
	TransactionTypes []string `bson:"transaction_type"`
	Cities           []string `bson:"city"`
	Neighborhoods    []string `bson:"neighborhood"`
	Bedrooms         []int    `bson:"bedroom_quantity"`
	Suites           []int    `bson:"suite_quantity"`
	GarageSlots      []int    `bson:"garage_slots_quantity"`
	MinPrice         float64  `bson:"min_price"`
	MaxPrice         float64  `bson:"max_price"`
	MinArea          float64  `bson:"min_area"`
	MaxArea          float64  `bson:"max_area"`
}

func (d filterDocument) toModel() models.SearchFilter {
	f := models.SearchFilter{
		Neighborhoods: d.Neighborhoods,
		Bedrooms:      d.Bedrooms,
		Suites:        d.Suites,
		GarageSlots:   d.GarageSlots,
		MinPrice:      d.MinPrice,
		MaxPrice:      d.MaxPrice,
		MinArea:       d.MinArea,
		MaxArea:       d.MaxArea,
	}
	if len(d.Cities) > 0 {
		f.City = d.Cities[0]
	}
	for _, pt := range d.PropertyTypes {
		f.PropertyTypes = append(f.PropertyTypes, models.PropertyType(pt))
	}
	for _, tt := range d.TransactionTypes {
		f.TransactionTypes = append(f.TransactionTypes, models.TransactionType(tt))
	}
	return f
}

func (s *MongoStore) findSearch(ctx context.Context, searchID uuid.UUID) (searchDocument, error) {
	var doc searchDocument
	if err := s.searches.FindOne(ctx, bson.M{"_id": searchID}).Decode(&doc); err != nil {
		return searchDocument{}, fmt.Errorf("mongo: get search %s: %w", searchID, mapMongoError(err))
	}
	return doc, nil
}

func (s *MongoStore) GetSearchFilter(ctx context.Context, searchID uuid.UUID) (models.SearchFilter, error) {
	doc, err := s.findSearch(ctx, searchID)
	if err != nil {
		return models.SearchFilter{}, err
	}
	return doc.Filter.toModel(), nil
}

func (s *MongoStore) GetSearchProgress(ctx context.Context, searchID uuid.UUID) (models.SearchProgress, error) {
	doc, err := s.findSearch(ctx, searchID)
	if err != nil {
		return models.SearchProgress{}, err
	}
	return models.SearchProgress{SearchID: doc.ID, Status: models.QueryStatus(doc.QueryStatus), Total: doc.Found}, nil
}

func (s *MongoStore) UpdateSearchProgress(ctx context.Context, p models.SearchProgress) error {
	res, err := s.searches.UpdateOne(ctx, bson.M{"_id": p.SearchID}, bson.M{"$set": bson.M{
		"query_status":             string(p.Status),
		"number_real_estate_found": p.Total,
	}})
	if err != nil {
		return fmt.Errorf("mongo: update search %s: %w", p.SearchID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongo: update search %s: %w", p.SearchID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) GetAgencyByProfileURL(ctx context.Context, profileURL string) (*models.Agency, error) {
	var a models.Agency
	if err := s.agencies.FindOne(ctx, bson.M{"profile_url": profileURL}).Decode(&a); err != nil {
		return nil, fmt.Errorf("mongo: get agency %q: %w", profileURL, mapMongoError(err))
	}
	return &a, nil
}

func (s *MongoStore) CreateAgency(ctx context.Context, a *models.Agency) error {
	if _, err := s.agencies.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("mongo: create agency %q: %w", a.ProfileURL, mapMongoError(err))
	}
	return nil
}

func (s *MongoStore) ListAgenciesWithoutDetails(ctx context.Context, limit int) ([]models.Agency, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "details_checked_at", Value: 1}, {Key: "name", Value: 1}}).
		SetLimit(int64(max(limit, 0)))
	cur, err := s.agencies.Find(ctx, bson.M{"creci": "", "profile_url": bson.M{"$ne": ""}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list agencies without details: %w", err)
	}
	var agencies []models.Agency
	if err := cur.All(ctx, &agencies); err != nil {
		return nil, fmt.Errorf("mongo: decode agencies: %w", err)
	}
	return agencies, nil
}

func (s *MongoStore) UpdateAgencyDetails(ctx context.Context, a *models.Agency) error {
	res, err := s.agencies.UpdateOne(ctx, bson.M{"_id": a.ID}, bson.M{"$set": bson.M{
		"creci":              a.Creci,
		"contact_number_1":   a.ContactNumber1,
		"contact_number_2":   a.ContactNumber2,
		"details_checked_at": a.DetailsCheckedAt,
	}})
	if err != nil {
		return fmt.Errorf("mongo: update agency %s: %w", a.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongo: update agency %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) GetListingByReferenceCode(ctx context.Context, code string) (*models.Listing, error) {
	var l models.Listing
	if err := s.listings.FindOne(ctx, bson.M{"reference_code": code}).Decode(&l); err != nil {
		return nil, fmt.Errorf("mongo: get listing %s: %w", code, mapMongoError(err))
	}
	return &l, nil
}

func (s *MongoStore) CreateListing(ctx context.Context, l *models.Listing) error {
	doc := *l
	if doc.ImagesURL == nil {
		doc.ImagesURL = []string{}
	}
	if _, err := s.listings.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: create listing %s: %w", l.ReferenceCode, mapMongoError(err))
	}
	return nil
}

func (s *MongoStore) ListListingsWithoutImages(ctx context.Context, limit int) ([]models.Listing, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "details_checked_at", Value: 1}, {Key: "created_at", Value: 1}}).
		SetLimit(int64(max(limit, 0)))
	filter := bson.M{"images_url": bson.M{"$size": 0}, "url": bson.M{"$ne": ""}}
	cur, err := s.listings.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list listings without images: %w", err)
	}
	var listings []models.Listing
	if err := cur.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("mongo: decode listings: %w", err)
	}
	return listings, nil
}

func (s *MongoStore) UpdateListingDetails(ctx context.Context, l *models.Listing) error {
	res, err := s.listings.UpdateOne(ctx, bson.M{"_id": l.ID}, bson.M{"$set": bson.M{
		"images_url":         l.ImagesURL,
		"cond_price":         l.CondPrice,
		"updated_at":         l.UpdatedAt,
		"details_checked_at": l.DetailsCheckedAt,
	}})
	if err != nil {
		return fmt.Errorf("mongo: update listing %s: %w", l.ReferenceCode, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongo: update listing %s: %w", l.ReferenceCode, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) AddSearchResult(ctx context.Context, r models.SearchResult) error {
	_, err := s.results.InsertOne(ctx, r)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongo: add result %s/%s: %w", r.SearchID, r.ListingID, err)
	}
	return nil
}

func (s *MongoStore) CountSearchResults(ctx context.Context, searchID uuid.UUID) (int, error) {
	n, err := s.results.CountDocuments(ctx, bson.M{"search_id": searchID})
	if err != nil {
		return 0, fmt.Errorf("mongo: count results for %s: %w", searchID, err)
	}
	return int(n), nil
}
