package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/platform/neo4jdb"
	"github.com/yungbote/categorylink/internal/refactor"
)

// CategoryLinker is the Neo4j TransactionRunner and CategoryCounter.
type CategoryLinker struct {
	client    *neo4jdb.Client
	stmts     Statements
	txTimeout time.Duration
	log       *logger.Logger
}

var (
	_ refactor.TransactionRunner = (*CategoryLinker)(nil)
	_ refactor.CategoryCounter   = (*CategoryLinker)(nil)
)

func NewCategoryLinker(client *neo4jdb.Client, stmts Statements, txTimeout time.Duration, log *logger.Logger) (*CategoryLinker, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("graph: neo4j client required")
	}
	if log == nil {
		return nil, fmt.Errorf("graph: logger required")
	}
	return &CategoryLinker{
		client:    client,
		stmts:     stmts,
		txTimeout: txTimeout,
		log:       log.With("repo", "CategoryLinker"),
	}, nil
}

func (l *CategoryLinker) txConfig() []func(*neo4j.TransactionConfig) {
	if l.txTimeout <= 0 {
		return nil
	}
	return []func(*neo4j.TransactionConfig){neo4j.WithTxTimeout(l.txTimeout)}
}

func (l *CategoryLinker) LinkBatch(ctx context.Context, req refactor.BatchRequest) (refactor.MutationResult, error) {
	if req.Limit <= 0 {
		return refactor.MutationResult{}, refactor.NewError(refactor.KindQueryExecution, "link_batch", fmt.Errorf("limit must be positive, got %d", req.Limit))
	}

	session := l.client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, l.stmts.LinkBatch(), map[string]any{
			"category": req.Category,
			"limit":    int64(req.Limit),
		})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		c := summary.Counters()
		return refactor.MutationResult{
			EdgesCreated:  int64(c.RelationshipsCreated()),
			NodesCreated:  int64(c.NodesCreated()),
			PropertiesSet: int64(c.PropertiesSet()),
			EdgesDeleted:  int64(c.RelationshipsDeleted()),
			NodesDeleted:  int64(c.NodesDeleted()),
		}, nil
	}, l.txConfig()...)
	if err != nil {
		return refactor.MutationResult{}, Classify("link_batch", err)
	}
	return out.(refactor.MutationResult), nil
}

func (l *CategoryLinker) CountUnlinked(ctx context.Context) ([]refactor.CategoryCount, error) {
	session := l.client.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, l.stmts.CountUnlinked(), nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		counts := make([]refactor.CategoryCount, 0, len(records))
		for _, rec := range records {
			raw, _ := rec.Get("category")
			n, _ := rec.Get("unlinked")
			unlinked, _ := n.(int64)
			if raw == nil || unlinked <= 0 {
				continue
			}
			category, ok := raw.(string)
			if !ok {
				// Non-string values cannot match the parent key parameter.
				l.log.Warn("skipping non-string category value", "value", fmt.Sprint(raw), "unlinked", unlinked)
				continue
			}
			counts = append(counts, refactor.CategoryCount{Category: category, Unlinked: unlinked})
		}
		return counts, nil
	})
	if err != nil {
		return nil, Classify("count_unlinked", err)
	}
	return out.([]refactor.CategoryCount), nil
}
