package db

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Q holds all information necessary to execute a query.
type Q struct {
	filter     any
	projection bson.M
	sort       []string
	skip       int
	limit      int
}

// Query returns a Q with the given filter and no projection, sort, skip,
// or limit.
func Query(filter any) Q {
	return Q{filter: filter, projection: NoProjection}
}

func (q Q) Filter(filter any) Q {
	q.filter = filter
	return q
}

func (q Q) Project(projection bson.M) Q {
	q.projection = projection
	return q
}

// WithFields adds a projection to q that selects just the fields given.
func (q Q) WithFields(fields ...string) Q {
	projection := bson.M{}
	for _, f := range fields {
		projection[f] = 1
	}
	q.projection = projection
	return q
}

// Sort sets the sort order, mgo-style: a field name, optionally prefixed
// with "-" for descending order.
func (q Q) Sort(sort []string) Q {
	q.sort = sort
	return q
}

func (q Q) Skip(skip int) Q {
	q.skip = skip
	return q
}

func (q Q) Limit(limit int) Q {
	q.limit = limit
	return q
}

// sortSpecToBSON converts mgo-style sort strings into the ordered document
// the driver expects.
func sortSpecToBSON(sort []string) bson.D {
	spec := bson.D{}
	for _, field := range sort {
		order := 1
		if strings.HasPrefix(field, "-") {
			order = -1
			field = strings.TrimPrefix(field, "-")
		}
		if field == "" {
			continue
		}
		spec = append(spec, bson.E{Key: field, Value: order})
	}

	return spec
}
