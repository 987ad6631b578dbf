package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/categorylink/internal/config"
)

func defaultStatements(t *testing.T) Statements {
	t.Helper()
	s, err := NewStatements(config.Default().Schema)
	if err != nil {
		t.Fatalf("NewStatements: %v", err)
	}
	return s
}

func TestLinkBatchStatement(t *testing.T) {
	q := defaultStatements(t).LinkBatch()

	for _, want := range []string{
		"MATCH (c:`Country` {`countryName`: $category})",
		"MATCH (n:`Organization` {`country`: $category})",
		"WHERE NOT EXISTS { (n)-[:`HAS_LOCATION`]->() }",
		"WITH c, n LIMIT $limit",
		"MERGE (n)-[:`HAS_LOCATION`]->(c)",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("link batch missing %q:\n%s", want, q)
		}
	}
	if strings.Contains(q, "France") {
		t.Fatalf("category values must be parameters")
	}
}

func TestCountUnlinkedStatement(t *testing.T) {
	q := defaultStatements(t).CountUnlinked()

	for _, want := range []string{
		"MATCH (n:`Organization`)",
		"n.`country` IS NOT NULL",
		"NOT EXISTS { (n)-[:`HAS_LOCATION`]->() }",
		"RETURN n.`country` AS category, count(n) AS unlinked",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("count unlinked missing %q:\n%s", want, q)
		}
	}
}

func TestSchemaStatements(t *testing.T) {
	s := defaultStatements(t)

	if got, want := s.CreateIndex(), "CREATE INDEX `categorylink_organization_country` IF NOT EXISTS FOR (n:`Organization`) ON (n.`country`)"; got != want {
		t.Fatalf("index: want=%q got=%q", want, got)
	}
	if got, want := s.CreateConstraint(), "CREATE CONSTRAINT `categorylink_country_countryname_unique` IF NOT EXISTS FOR (c:`Country`) REQUIRE c.`countryName` IS UNIQUE"; got != want {
		t.Fatalf("constraint: want=%q got=%q", want, got)
	}
	if got := s.DeleteCategories(); got != "MATCH (c:`Country`) DETACH DELETE c" {
		t.Fatalf("delete categories: got=%q", got)
	}
}

func TestExtractCategoriesStatement(t *testing.T) {
	s := defaultStatements(t)

	full := s.ExtractCategories(false)
	if strings.Contains(full, "rand()") {
		t.Fatalf("full scan must not sample:\n%s", full)
	}
	if !strings.Contains(full, "MERGE (c:`Country` {`countryName`: name})") {
		t.Fatalf("extract missing merge:\n%s", full)
	}
	if sample := s.ExtractCategories(true); !strings.Contains(sample, "rand() < $rate") {
		t.Fatalf("sample must filter by rate:\n%s", sample)
	}
}

func TestNewStatementsRejectsInjection(t *testing.T) {
	schema := config.Default().Schema
	schema.RelationshipType = "HAS_LOCATION]->() DETACH DELETE n //"

	_, err := NewStatements(schema)

	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Code != config.ConfigErrorInvalidIdentifier {
		t.Fatalf("expected invalid identifier error, got=%v", err)
	}
	if cfgErr.Field != "schema.relationshipType" {
		t.Fatalf("field: want=%q got=%q", "schema.relationshipType", cfgErr.Field)
	}
}

func TestQuote(t *testing.T) {
	if got := quote("a`b"); got != "`a``b`" {
		t.Fatalf("quote: got=%q", got)
	}
}
