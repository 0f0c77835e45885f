package mongodb

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
)

// DecodeDocument unmarshals raw into a bson.M whose embedded documents are
// bson.D. MongoDB compares embedded documents field by field in order, so a
// document read this way can be used as an exact-match filter again.
func DecodeDocument(raw bson.Raw) (bson.M, error) {
	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create bson decoder: %w", err)
	}
	dec.DefaultDocumentD()
	out := bson.M{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}
