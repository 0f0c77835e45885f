package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ObjectID canonicalizes id into a primitive.ObjectID. It accepts an
// ObjectID, a pointer to one, or its 24-character hex form.
func ObjectID(id any) (primitive.ObjectID, error) {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v, nil
	case *primitive.ObjectID:
		if v != nil {
			return *v, nil
		}
	case string:
		oid, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, v)
		}
		return oid, nil
	}
	return primitive.NilObjectID, fmt.Errorf("%w: %v (%T)", ErrInvalidID, id, id)
}

// NewID returns a fresh document identifier.
func NewID() primitive.ObjectID {
	return primitive.NewObjectID()
}
