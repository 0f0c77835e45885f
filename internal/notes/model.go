// Package notes is a small document-backed application served through the
// dispatcher: a collection of notes with tags, CRUD controllers, tag
// statistics and a background worker that keeps word counts current.
package notes

import (
	"bytes"
	"embed"
	"io/fs"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimburion/docroute/pkg/document"
	"github.com/nimburion/docroute/pkg/route"
)

// Collection is the MongoDB collection notes live in.
const Collection = "notes"

//go:embed routes.yaml
var routesYAML []byte

//go:embed functions/*.js
var embedded embed.FS

// Model is the strict note schema.
var Model = document.MustModel("note", document.Schema{
	"title":      document.Required,
	"body":       document.Field,
	"tags":       document.Field,
	"words":      document.Field,
	"created_at": document.Field,
	"updated_at": document.Field,
}, true)

// Note is the typed view of a note record.
type Note struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body,omitempty" json:"body,omitempty"`
	Tags      []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Words     int                `bson:"words,omitempty" json:"words,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Routes returns the built-in route table.
func Routes() (*route.Table, error) {
	return route.Load(bytes.NewReader(routesYAML))
}

// Functions returns the built-in map/reduce sources.
func Functions() fs.FS {
	sub, err := fs.Sub(embedded, "functions")
	if err != nil {
		panic(err)
	}
	return sub
}
