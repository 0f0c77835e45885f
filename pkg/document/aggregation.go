package document

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Aggregation builds an aggregation pipeline stage by stage. Stage methods
// return the receiver for chaining; project, match, group and sort ignore an
// empty document.
//
//	pipeline := document.NewAggregation().
//		Match(bson.M{"status": "open"}).
//		Group(bson.M{"_id": "$owner", "n": document.Sum(1)}).
//		Sort(bson.M{"n": -1})
type Aggregation struct {
	stages mongo.Pipeline
}

// NewAggregation returns an empty pipeline.
func NewAggregation() *Aggregation {
	return &Aggregation{stages: mongo.Pipeline{}}
}

func (a *Aggregation) add(op string, doc any) *Aggregation {
	a.stages = append(a.stages, bson.D{{Key: op, Value: doc}})
	return a
}

func (a *Aggregation) addStage(op string, doc bson.M) *Aggregation {
	if len(doc) == 0 {
		return a
	}
	return a.add(op, doc)
}

func (a *Aggregation) Project(doc bson.M) *Aggregation { return a.addStage("$project", doc) }
func (a *Aggregation) Match(doc bson.M) *Aggregation   { return a.addStage("$match", doc) }
func (a *Aggregation) Group(doc bson.M) *Aggregation   { return a.addStage("$group", doc) }

// Sort appends a $sort stage. Sort order across keys follows map iteration
// order, so use SortBy when more than one key is given.
func (a *Aggregation) Sort(doc bson.M) *Aggregation { return a.addStage("$sort", doc) }

// SortBy appends a $sort stage with an ordered key list.
func (a *Aggregation) SortBy(doc bson.D) *Aggregation {
	if len(doc) == 0 {
		return a
	}
	return a.add("$sort", doc)
}

func (a *Aggregation) Limit(n int64) *Aggregation { return a.add("$limit", n) }
func (a *Aggregation) Skip(n int64) *Aggregation  { return a.add("$skip", n) }

// Unwind appends an $unwind stage on field.
func (a *Aggregation) Unwind(field string) *Aggregation {
	return a.add("$unwind", fieldPath(field))
}

// Pipeline returns a copy of the accumulated stages.
func (a *Aggregation) Pipeline() mongo.Pipeline {
	out := make(mongo.Pipeline, len(a.stages))
	copy(out, a.stages)
	return out
}

// Len returns the number of stages.
func (a *Aggregation) Len() int { return len(a.stages) }

// Sum is a $sum accumulator. Numbers are summed as constants, anything else
// is treated as a field name.
func Sum(value any) bson.M {
	switch v := value.(type) {
	case int, int32, int64, float32, float64:
		return bson.M{"$sum": v}
	case string:
		return bson.M{"$sum": fieldPath(v)}
	default:
		return bson.M{"$sum": v}
	}
}

func AddToSet(field string) bson.M { return accumulator("$addToSet", field) }
func First(field string) bson.M    { return accumulator("$first", field) }
func Last(field string) bson.M     { return accumulator("$last", field) }
func Max(field string) bson.M      { return accumulator("$max", field) }
func Min(field string) bson.M      { return accumulator("$min", field) }
func Avg(field string) bson.M      { return accumulator("$avg", field) }
func Push(field string) bson.M     { return accumulator("$push", field) }

// PushFields is a $push accumulator over several fields, in order.
func PushFields(fields ...string) bson.M {
	paths := make(bson.A, 0, len(fields))
	for _, f := range fields {
		paths = append(paths, fieldPath(f))
	}
	return bson.M{"$push": paths}
}

func accumulator(op, field string) bson.M {
	return bson.M{op: fieldPath(field)}
}

func fieldPath(field string) string {
	if strings.HasPrefix(field, "$") {
		return field
	}
	return "$" + field
}
