package models

import (
	"time"

	"github.com/google/uuid"
)

// PropertyType is the canonical kind of real estate.
type PropertyType string

const (
	PropertyApartment PropertyType = "apartment"
	PropertyHouse     PropertyType = "house"
	PropertyTerrain   PropertyType = "terrain"
	PropertyOffice    PropertyType = "office"
	PropertyStore     PropertyType = "store"
	PropertyWarehouse PropertyType = "warehouse"
	PropertyRural     PropertyType = "rural"
)

// TransactionType is the kind of deal a listing is offered for.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionRent TransactionType = "rent"
)

// RawAgency is the advertiser block of a listing card, exactly as scraped.
type RawAgency struct {
	Name       string
	ProfileURL string
	LogoURL    string
}

// RawListing holds provider-native strings extracted from one listing card.
// Any field may be empty when the card did not carry the expected markup;
// Missing names those fields. This is written to CSV before any normalization.
type RawListing struct {
	Code         string
	Model        string
	Neighborhood string
	City         string
	Summary      string
	URL          string
	Bedrooms     string
	Suites       string
	GarageSlots  string
	Area         string
	Price        string
	Agency       *RawAgency
	Missing      []string
}

// NormalizedListing is a RawListing converted to canonical types, not yet
// bound to a stored agency.
type NormalizedListing struct {
	ReferenceCode       string
	PropertyType        PropertyType
	TransactionType     TransactionType
	City                string
	Neighborhood        string
	BedroomQuantity     int
	SuiteQuantity       int
	GarageSlotsQuantity int
	Price               float64
	Area                float64
	URL                 string
	Agency              RawAgency
}

// Listing is the persisted, globally deduplicated record keyed by ReferenceCode.
type Listing struct {
	ID                  uuid.UUID       `bson:"_id"`
	CreatedAt           time.Time       `bson:"created_at"`
	UpdatedAt           time.Time       `bson:"updated_at"`
	ReferenceCode       string          `bson:"reference_code"`
	PropertyType        PropertyType    `bson:"property_type"`
	TransactionType     TransactionType `bson:"transaction_type"`
	City                string          `bson:"city"`
	Neighborhood        string          `bson:"neighborhood"`
	BedroomQuantity     int             `bson:"bedroom_quantity"`
	SuiteQuantity       int             `bson:"suite_quantity"`
	BathroomQuantity    int             `bson:"bathroom_quantity"`
	GarageSlotsQuantity int             `bson:"garage_slots_quantity"`
	Price               float64         `bson:"price"`
	Area                float64         `bson:"area"`
	AreaTotal           float64         `bson:"area_total"`
	CondPrice           float64         `bson:"cond_price"`
	Available           bool            `bson:"available"`
	AgencyID            uuid.UUID       `bson:"agency_id"`
	Description         string          `bson:"description"`
	ImagesURL           []string        `bson:"images_url"`
	URL                 string          `bson:"url"`

	// DetailsCheckedAt is when the listing page was last visited for
	// details; nil until the first visit.
	DetailsCheckedAt *time.Time `bson:"details_checked_at"`
}

// Agency is a brokerage, deduplicated by ProfileURL. Contact fields stay
// empty until the agency details crawl fills them; DetailsCheckedAt is set
// on every visit of the profile page.
type Agency struct {
	ID              uuid.UUID `bson:"_id" db:"id"`
	Name            string    `bson:"name" db:"name"`
	Creci           string    `bson:"creci" db:"creci"`
	City            string    `bson:"city" db:"city"`
	AddressStreet   string    `bson:"address_street" db:"address_street"`
	AddressNumber   string    `bson:"address_number" db:"address_number"`
	ContactNumber1  string    `bson:"contact_number_1" db:"contact_number_1"`
	ContactNumber2  string    `bson:"contact_number_2" db:"contact_number_2"`
	ContactWhatsapp string    `bson:"contact_whatsapp" db:"contact_whatsapp"`
	LogoURL         string    `bson:"logo_url" db:"logo_url"`
	ProfileURL      string    `bson:"profile_url" db:"profile_url"`

	DetailsCheckedAt *time.Time `bson:"details_checked_at" db:"details_checked_at"`
}

// AgencyDetails is what the agency profile page adds to an Agency.
type AgencyDetails struct {
	Creci        string
	PhoneNumbers []string
}

// ListingDetails is what the listing page adds to a Listing.
type ListingDetails struct {
	Images     []string
	CondoPrice string
}
