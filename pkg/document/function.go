package document

import (
	"fmt"
	"io/fs"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoadFunction reads the JavaScript function <name>.js from fsys for use with
// MapReduce. With a non-empty scope the code is bound to it.
//
//	mapFn, err := document.LoadFunction(os.DirFS("mongo_functions"), "tags_map", nil)
func LoadFunction(fsys fs.FS, name string, scope bson.M) (any, error) {
	if name == "" {
		return nil, fmt.Errorf("function name is required")
	}
	file := name
	if !strings.HasSuffix(file, ".js") {
		file += ".js"
	}
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("failed to load function %s: %w", name, err)
	}
	code := primitive.JavaScript(strings.TrimSpace(string(data)))
	if len(scope) == 0 {
		return code, nil
	}
	return primitive.CodeWithScope{Code: code, Scope: scope}, nil
}
