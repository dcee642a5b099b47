package internal

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/lychee-technology/facet"
	"go.uber.org/zap"
)

// FileSchemaSource loads definition documents from *.json files in a single
// directory. Files are read in name order so repeated loads are
// deterministic.
type FileSchemaSource struct {
	dir string
}

// NewFileSchemaSource creates a directory-backed schema source.
func NewFileSchemaSource(dir string) *FileSchemaSource {
	return &FileSchemaSource{dir: dir}
}

// Name identifies the source in logs and errors.
func (s *FileSchemaSource) Name() string {
	return "directory:" + s.dir
}

// Load reads every definition file in the directory. Broken documents are
// collected per file; one bad file does not hide the others.
func (s *FileSchemaSource) Load(ctx context.Context) ([]*facet.SchemaDefinition, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, facet.NewSourceUnavailableError(s.Name(), "failed to read schema directory", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && filepath.Ext(name) == ".json" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, facet.NewSourceUnavailableError(s.Name(), "no definition files found in directory", nil)
	}

	definitionErrors := facet.NewDefinitionErrors()
	definitions := make([]*facet.SchemaDefinition, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			definitionErrors.Add(name,
				facet.NewDefinitionInvalidError(name, "failed to read definition file").WithCause(err))
			continue
		}
		def, ferr := parseValidatedDefinition(name, data)
		if ferr != nil {
			definitionErrors.Add(name, ferr)
			continue
		}
		definitions = append(definitions, def)
		zap.S().Debugw("loaded schema definition", "file", name, "typeKey", def.TypeKey)
	}

	if definitionErrors.HasErrors() {
		return nil, definitionErrors.ToError()
	}
	return definitions, nil
}

// parseValidatedDefinition runs the meta-schema check and then the parser,
// normalizing every failure into a *facet.FacetError.
func parseValidatedDefinition(name string, data []byte) (*facet.SchemaDefinition, *facet.FacetError) {
	if ferr := ValidateDefinitionDocument(name, data); ferr != nil {
		return nil, ferr
	}
	def, err := facet.ParseSchemaDefinition(data)
	if err != nil {
		if ferr, ok := err.(*facet.FacetError); ok {
			return nil, ferr
		}
		return nil, facet.NewDefinitionInvalidError(name, err.Error())
	}
	return def, nil
}

// LoadIntoRegistry loads every definition from the source, compiles it and
// registers the result. It returns the type keys registered, in load order.
func LoadIntoRegistry(ctx context.Context, source SchemaSource, registry *facet.SchemaRegistry) ([]string, error) {
	definitions, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(definitions))
	for _, def := range definitions {
		schema, err := def.TypeSchema()
		if err != nil {
			return nil, err
		}
		if err := registry.Register(schema); err != nil {
			return nil, err
		}
		keys = append(keys, def.TypeKey)
	}
	EmitSchemaLoad(ctx, source.Name(), int64(len(keys)))
	zap.S().Infow("schema registry loaded", "source", source.Name(), "schemas", len(keys))
	return keys, nil
}
