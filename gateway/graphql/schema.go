package graphql

import (
	_ "embed"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/arnellebalane/instagram-graphql/errors"
)

//go:embed schema.graphqls
var schemaSDL string

// loadSchema parses the embedded schema definition
func loadSchema() (*ast.Schema, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{
		Name:  "schema.graphqls",
		Input: schemaSDL,
	})
	if err != nil {
		return nil, errors.WrapFatal(err, "Server", "loadSchema", "parse embedded schema")
	}
	return schema, nil
}
