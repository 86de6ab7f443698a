package crafting

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/recipe"
)

//go:embed catalog.schema.json
var catalogSchemaJSON string

const catalogSchemaURL = "https://kozak.schemas.local/crafting/catalog.schema.json"

var catalogSchema = mustCompileCatalogSchema()

func mustCompileCatalogSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(catalogSchemaURL, strings.NewReader(catalogSchemaJSON)); err != nil {
		panic(fmt.Sprintf("catalog schema load failed: %v", err))
	}
	schema, err := c.Compile(catalogSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("catalog schema compile failed: %v", err))
	}
	return schema
}

// Catalog is an immutable, validated recipe book.
type Catalog struct {
	byID    map[uint32]recipe.Recipe
	ordered []recipe.Recipe
	digest  string
}

type catalogFile struct {
	Version string          `json:"version,omitempty"`
	Recipes []recipe.Recipe `json:"recipes"`
}

// NewCatalog validates recipes and indexes them by id.
func NewCatalog(recipes []recipe.Recipe) (*Catalog, error) {
	if len(recipes) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", recipe.ErrInvalid)
	}
	c := &Catalog{byID: make(map[uint32]recipe.Recipe, len(recipes))}
	for _, r := range recipes {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate recipe id %d", recipe.ErrInvalid, r.ID)
		}
		c.byID[r.ID] = r.Clone()
		c.ordered = append(c.ordered, r.Clone())
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].ID < c.ordered[j].ID })

	canonical, err := json.Marshal(c.ordered)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	sum := sha256.Sum256(canonical)
	c.digest = hex.EncodeToString(sum[:])
	return c, nil
}

// DefaultCatalog returns the built-in recipe book.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(recipe.Defaults())
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalog validates a JSON catalog document against the embedded schema
// and then against the recipe invariants.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := catalogSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", recipe.ErrInvalid, err)
	}
	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", recipe.ErrInvalid, err)
	}
	return NewCatalog(file.Recipes)
}

// LoadCatalog reads and parses a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// Get looks up a recipe by id.
func (c *Catalog) Get(id uint32) (recipe.Recipe, bool) {
	r, ok := c.byID[id]
	if !ok {
		return recipe.Recipe{}, false
	}
	return r.Clone(), true
}

// All returns every recipe ordered by id.
func (c *Catalog) All() []recipe.Recipe {
	out := make([]recipe.Recipe, len(c.ordered))
	for i, r := range c.ordered {
		out[i] = r.Clone()
	}
	return out
}

// Digest is the hex SHA-256 of the canonical catalog encoding.
func (c *Catalog) Digest() string { return c.digest }

// Len returns the number of recipes.
func (c *Catalog) Len() int { return len(c.ordered) }
