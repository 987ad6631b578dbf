package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/platform/neo4jdb"
)

type ExtractMode string

const (
	ExtractSample ExtractMode = "sample"
	ExtractFull   ExtractMode = "full"
)

type ExtractOptions struct {
	Mode ExtractMode
	// SampleRate is the probability a child contributes its value in sample mode.
	SampleRate float64
	// Reset detach-deletes every existing parent node before extracting.
	Reset bool
}

type ExtractResult struct {
	Categories   int64 `json:"categories"`
	NodesCreated int64 `json:"nodes_created"`
	NodesDeleted int64 `json:"nodes_deleted"`
}

// Setup prepares the graph for a refactor run: schema, parent extraction, page cache warmup.
type Setup struct {
	client *neo4jdb.Client
	stmts  Statements
	log    *logger.Logger
}

func NewSetup(client *neo4jdb.Client, stmts Statements, log *logger.Logger) (*Setup, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("graph: neo4j client required")
	}
	if log == nil {
		return nil, fmt.Errorf("graph: logger required")
	}
	return &Setup{client: client, stmts: stmts, log: log.With("repo", "GraphSetup")}, nil
}

// EnsureSchema creates the child-property index and parent-key uniqueness
// constraint. Both statements are no-ops when the schema already exists.
func (s *Setup) EnsureSchema(ctx context.Context) error {
	session := s.client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, q := range []string{s.stmts.CreateIndex(), s.stmts.CreateConstraint()} {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return Classify("ensure_schema", err)
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return Classify("ensure_schema", err)
		}
		c := summary.Counters()
		s.log.Info("schema statement applied", "statement", q, "indexes_added", c.IndexesAdded(), "constraints_added", c.ConstraintsAdded())
	}
	return nil
}

func (s *Setup) ExtractCategories(ctx context.Context, opts ExtractOptions) (ExtractResult, error) {
	var params map[string]any
	switch opts.Mode {
	case ExtractFull:
	case ExtractSample:
		if opts.SampleRate <= 0 || opts.SampleRate > 1 {
			return ExtractResult{}, fmt.Errorf("graph: sample rate must be in (0, 1], got %v", opts.SampleRate)
		}
		params = map[string]any{"rate": opts.SampleRate}
	default:
		return ExtractResult{}, fmt.Errorf("graph: unknown extract mode %q", opts.Mode)
	}

	session := s.client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	var out ExtractResult
	if opts.Reset {
		res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			r, err := tx.Run(ctx, s.stmts.DeleteCategories(), nil)
			if err != nil {
				return nil, err
			}
			summary, err := r.Consume(ctx)
			if err != nil {
				return nil, err
			}
			return int64(summary.Counters().NodesDeleted()), nil
		})
		if err != nil {
			return ExtractResult{}, Classify("reset_categories", err)
		}
		out.NodesDeleted = res.(int64)
		s.log.Info("existing category nodes deleted", "nodes_deleted", out.NodesDeleted)
	}

	res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := tx.Run(ctx, s.stmts.ExtractCategories(opts.Mode == ExtractSample), params)
		if err != nil {
			return nil, err
		}
		rec, err := r.Single(ctx)
		if err != nil {
			return nil, err
		}
		summary, err := r.Consume(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := rec.Get("categories")
		categories, _ := n.(int64)
		return ExtractResult{Categories: categories, NodesCreated: int64(summary.Counters().NodesCreated())}, nil
	})
	if err != nil {
		return ExtractResult{}, Classify("extract_categories", err)
	}
	extracted := res.(ExtractResult)
	out.Categories = extracted.Categories
	out.NodesCreated = extracted.NodesCreated
	s.log.Info("category nodes extracted", "mode", opts.Mode, "categories", out.Categories, "nodes_created", out.NodesCreated)
	return out, nil
}

// Warmup loads the store into the page cache via APOC. A missing procedure is
// reported with ok=false rather than an error.
func (s *Setup) Warmup(ctx context.Context) (bool, error) {
	session := s.client.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	res, err := session.Run(ctx, s.stmts.Warmup(), nil)
	if err == nil {
		var records []*neo4j.Record
		records, err = res.Collect(ctx)
		for _, rec := range records {
			s.log.Debug("warmup", "record", rec.AsMap())
		}
	}
	if err != nil {
		if isMissingProcedure(err) {
			s.log.Warn("apoc.warmup.run unavailable, skipping warmup", "error", err)
			return false, nil
		}
		return false, Classify("warmup", err)
	}
	return true, nil
}

func isMissingProcedure(err error) bool {
	var nerr *neo4j.Neo4jError
	if !errors.As(err, &nerr) {
		return false
	}
	return strings.HasSuffix(nerr.Code, "Procedure.ProcedureNotFound")
}
