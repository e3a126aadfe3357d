package db

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// RawQuery translates the OData-style filter expression carried on
// administrative listing URLs into a store filter. Supported shape:
//
//	field op value [and field op value ...]
//
// where op is one of eq, ne, gt, ge, lt, le, and value is a single-quoted
// string, a number, or a boolean. An empty expression matches everything.
func RawQuery(expr string) (bson.M, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return bson.M{}, nil
	}

	clauses := []bson.M{}
	for _, clause := range strings.Split(expr, " and ") {
		parts := strings.SplitN(strings.TrimSpace(clause), " ", 3)
		if len(parts) != 3 {
			return nil, errors.Errorf("malformed filter clause '%s'", clause)
		}

		field, op, raw := parts[0], parts[1], parts[2]
		value, err := parseRawValue(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing value in clause '%s'", clause)
		}

		switch op {
		case "eq":
			clauses = append(clauses, bson.M{field: value})
		case "ne":
			clauses = append(clauses, bson.M{field: bson.M{"$ne": value}})
		case "gt":
			clauses = append(clauses, bson.M{field: bson.M{"$gt": value}})
		case "ge":
			clauses = append(clauses, bson.M{field: bson.M{"$gte": value}})
		case "lt":
			clauses = append(clauses, bson.M{field: bson.M{"$lt": value}})
		case "le":
			clauses = append(clauses, bson.M{field: bson.M{"$lte": value}})
		default:
			return nil, errors.Errorf("unsupported filter operator '%s'", op)
		}
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}

	return bson.M{"$and": clauses}, nil
}

func parseRawValue(raw string) (any, error) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "'") {
		if len(raw) < 2 || !strings.HasSuffix(raw, "'") {
			return nil, errors.Errorf("unterminated string literal %s", raw)
		}
		return strings.Trim(raw, "'"), nil
	}

	if raw == "true" || raw == "false" {
		return raw == "true", nil
	}

	num, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.Errorf("unrecognized literal %s", raw)
	}

	return num, nil
}
