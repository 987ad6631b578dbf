package graph

import (
	"fmt"
	"strings"

	"github.com/yungbote/categorylink/internal/config"
)

// Statements renders the Cypher for one configured schema. Labels, property keys
// and relationship types cannot be parameterized, so they are validated and quoted;
// category values and limits always travel as parameters.
type Statements struct {
	child    string
	prop     string
	parent   string
	key      string
	rel      string
	indexID  string
	uniqueID string
}

func NewStatements(schema config.SchemaConfig) (Statements, error) {
	for _, id := range []struct{ field, value string }{
		{"childLabel", schema.ChildLabel},
		{"childProperty", schema.ChildProperty},
		{"parentLabel", schema.ParentLabel},
		{"parentKey", schema.ParentKey},
		{"relationshipType", schema.RelationshipType},
	} {
		if !config.ValidIdentifier(id.value) {
			return Statements{}, &config.ConfigError{Code: config.ConfigErrorInvalidIdentifier, Field: "schema." + id.field, Value: id.value}
		}
	}
	return Statements{
		child:    quote(schema.ChildLabel),
		prop:     quote(schema.ChildProperty),
		parent:   quote(schema.ParentLabel),
		key:      quote(schema.ParentKey),
		rel:      quote(schema.RelationshipType),
		indexID:  quote(strings.ToLower(fmt.Sprintf("categorylink_%s_%s", schema.ChildLabel, schema.ChildProperty))),
		uniqueID: quote(strings.ToLower(fmt.Sprintf("categorylink_%s_%s_unique", schema.ParentLabel, schema.ParentKey))),
	}, nil
}

func quote(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func (s Statements) CountUnlinked() string {
	return fmt.Sprintf(`
MATCH (n:%[1]s)
WHERE n.%[2]s IS NOT NULL AND NOT EXISTS { (n)-[:%[3]s]->() }
RETURN n.%[2]s AS category, count(n) AS unlinked
ORDER BY category
`, s.child, s.prop, s.rel)
}

// LinkBatch matches parent and children on their indexed values so the planner
// never builds a cartesian product, and MERGE keeps the mutation create-if-absent.
func (s Statements) LinkBatch() string {
	return fmt.Sprintf(`
MATCH (c:%[1]s {%[2]s: $category})
MATCH (n:%[3]s {%[4]s: $category})
WHERE NOT EXISTS { (n)-[:%[5]s]->() }
WITH c, n LIMIT $limit
MERGE (n)-[:%[5]s]->(c)
`, s.parent, s.key, s.child, s.prop, s.rel)
}

func (s Statements) CreateIndex() string {
	return fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.%s)", s.indexID, s.child, s.prop)
}

func (s Statements) CreateConstraint() string {
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (c:%s) REQUIRE c.%s IS UNIQUE", s.uniqueID, s.parent, s.key)
}

func (s Statements) DeleteCategories() string {
	return fmt.Sprintf("MATCH (c:%s) DETACH DELETE c", s.parent)
}

// ExtractCategories merges one parent per distinct child value. When sampled, each
// child is kept with probability $rate.
func (s Statements) ExtractCategories(sampled bool) string {
	where := fmt.Sprintf("n.%s IS NOT NULL", s.prop)
	if sampled {
		where += " AND rand() < $rate"
	}
	return fmt.Sprintf(`
MATCH (n:%[1]s)
WHERE %[2]s
WITH DISTINCT n.%[3]s AS name
MERGE (c:%[4]s {%[5]s: name})
RETURN count(c) AS categories
`, s.child, where, s.prop, s.parent, s.key)
}

func (s Statements) Warmup() string {
	return "CALL apoc.warmup.run()"
}
