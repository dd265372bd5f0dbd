package isc

import "realestate-ingest/models"

// Provider URL tokens for each canonical property type. PropertyStore has no
// provider category and is searched as a house.
var propertyTokens = map[models.PropertyType]string{
	models.PropertyApartment: "apartamento",
	models.PropertyHouse:     "casa",
	models.PropertyTerrain:   "terreno",
	models.PropertyOffice:    "sala-escritorio",
	models.PropertyWarehouse: "galpao",
	models.PropertyRural:     "imovel-rural",
}

var tokenProperties = map[string]models.PropertyType{
	"apartamento":     models.PropertyApartment,
	"casa":            models.PropertyHouse,
	"terreno":         models.PropertyTerrain,
	"sala-escritorio": models.PropertyOffice,
	"galpao":          models.PropertyWarehouse,
	"imovel-rural":    models.PropertyRural,
}

var transactionTokens = map[models.TransactionType]string{
	models.TransactionBuy:  "comprar",
	models.TransactionRent: "alugar",
}

var tokenTransactions = map[string]models.TransactionType{
	"comprar": models.TransactionBuy,
	"alugar":  models.TransactionRent,
}

const (
	defaultPropertyToken    = "casa"
	defaultTransactionToken = "alugar"

	// DefaultPropertyType is assumed when a listing URL carries no known category.
	DefaultPropertyType = models.PropertyHouse
	// DefaultTransactionType is assumed when a listing URL carries no known deal type.
	DefaultTransactionType = models.TransactionBuy
)

// PropertyToken returns the provider URL token for pt.
func PropertyToken(pt models.PropertyType) string {
	if tok, ok := propertyTokens[pt]; ok {
		return tok
	}
	return defaultPropertyToken
}

// TransactionToken returns the provider URL token for tt.
func TransactionToken(tt models.TransactionType) string {
	if tok, ok := transactionTokens[tt]; ok {
		return tok
	}
	return defaultTransactionToken
}

// PropertyTypeFromToken maps a listing URL segment to a property type.
// The bool reports whether the token was recognized.
func PropertyTypeFromToken(token string) (models.PropertyType, bool) {
	if pt, ok := tokenProperties[token]; ok {
		return pt, true
	}
	return DefaultPropertyType, false
}

// TransactionTypeFromToken maps a listing URL segment to a transaction type.
// The bool reports whether the token was recognized.
func TransactionTypeFromToken(token string) (models.TransactionType, bool) {
	if tt, ok := tokenTransactions[token]; ok {
		return tt, true
	}
	return DefaultTransactionType, false
}
