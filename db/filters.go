package db

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CaseInsensitiveEq returns a filter matching value on field regardless of
// case. URIs are compared case-insensitively throughout the store.
func CaseInsensitiveEq(field, value string) bson.M {
	return bson.M{field: primitive.Regex{
		Pattern: "^" + regexp.QuoteMeta(value) + "$",
		Options: "i",
	}}
}
