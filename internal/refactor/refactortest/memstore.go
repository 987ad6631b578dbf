// Package refactortest provides an in-memory graph that behaves like the Neo4j
// link mutation: bounded, index-matched on category, create-if-absent.
package refactortest

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/categorylink/internal/refactor"
)

type child struct {
	id       int
	category string
}

type MemStore struct {
	mu       sync.Mutex
	children []child
	parents  map[string]bool
	// edges counts relationships per child id; linkedTo records the parent key.
	edges    map[int]int
	linkedTo map[int]string
	calls    []refactor.BatchRequest

	failAt      map[int]error
	commitFail  map[int]error
	countErr    error
	afterCall   func(call int)
	nextChildID int
}

func NewMemStore() *MemStore {
	return &MemStore{
		parents:    map[string]bool{},
		edges:      map[int]int{},
		linkedTo:   map[int]string{},
		failAt:     map[int]error{},
		commitFail: map[int]error{},
	}
}

// AddChildren adds n unlinked children carrying category.
func (s *MemStore) AddChildren(category string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.nextChildID++
		s.children = append(s.children, child{id: s.nextChildID, category: category})
	}
}

func (s *MemStore) AddParent(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents[category] = true
}

// Seed adds a parent node and n children for every entry.
func (s *MemStore) Seed(counts map[string]int) {
	for category, n := range counts {
		s.AddParent(category)
		s.AddChildren(category, n)
	}
}

// FailCall makes the 1-based call'th LinkBatch return err without committing.
func (s *MemStore) FailCall(call int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt[call] = err
}

// FailCallAfterCommit commits the call'th batch and then returns err, as when the
// acknowledgement is lost after the transaction committed.
func (s *MemStore) FailCallAfterCommit(call int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitFail[call] = err
}

func (s *MemStore) FailCount(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countErr = err
}

// AfterCall registers a hook run (outside the lock) after every LinkBatch call.
func (s *MemStore) AfterCall(fn func(call int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterCall = fn
}

func (s *MemStore) LinkBatch(ctx context.Context, req refactor.BatchRequest) (refactor.MutationResult, error) {
	res, call, err := s.linkBatch(ctx, req)
	s.mu.Lock()
	hook := s.afterCall
	s.mu.Unlock()
	if hook != nil && call > 0 {
		hook(call)
	}
	return res, err
}

func (s *MemStore) linkBatch(ctx context.Context, req refactor.BatchRequest) (refactor.MutationResult, int, error) {
	if err := ctx.Err(); err != nil {
		return refactor.MutationResult{}, 0, err
	}
	if req.Limit <= 0 {
		return refactor.MutationResult{}, 0, refactor.NewError(refactor.KindQueryExecution, "link_batch", fmt.Errorf("limit must be positive"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	call := len(s.calls)
	if err, ok := s.failAt[call]; ok {
		return refactor.MutationResult{}, call, err
	}

	var res refactor.MutationResult
	if s.parents[req.Category] {
		for _, c := range s.children {
			if res.EdgesCreated >= int64(req.Limit) {
				break
			}
			if c.category != req.Category || s.edges[c.id] > 0 {
				continue
			}
			s.edges[c.id]++
			s.linkedTo[c.id] = req.Category
			res.EdgesCreated++
		}
	}
	if err, ok := s.commitFail[call]; ok {
		return refactor.MutationResult{}, call, err
	}
	return res, call, nil
}

func (s *MemStore) CountUnlinked(ctx context.Context) ([]refactor.CategoryCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return nil, s.countErr
	}
	counts := map[string]int64{}
	var order []string
	for _, c := range s.children {
		if s.edges[c.id] > 0 {
			continue
		}
		if _, ok := counts[c.category]; !ok {
			order = append(order, c.category)
		}
		counts[c.category]++
	}
	out := make([]refactor.CategoryCount, 0, len(order))
	for _, category := range order {
		out = append(out, refactor.CategoryCount{Category: category, Unlinked: counts[category]})
	}
	return out, nil
}

func (s *MemStore) Calls() []refactor.BatchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]refactor.BatchRequest(nil), s.calls...)
}

func (s *MemStore) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.failAt = map[int]error{}
	s.commitFail = map[int]error{}
}

// Linked returns the number of children of category holding an edge.
func (s *MemStore) Linked(category string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.children {
		if c.category == category && s.edges[c.id] > 0 {
			n++
		}
	}
	return n
}

// MaxEdgesPerChild is the largest relationship count held by any child.
func (s *MemStore) MaxEdgesPerChild() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, n := range s.edges {
		if n > max {
			max = n
		}
	}
	return max
}

// Mislinked counts children whose edge points at a parent other than their own category.
func (s *MemStore) Mislinked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.children {
		if parent, ok := s.linkedTo[c.id]; ok && parent != c.category {
			n++
		}
	}
	return n
}

// EdgeSet returns child id → parent key for every linked child.
func (s *MemStore) EdgeSet() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string, len(s.linkedTo))
	for k, v := range s.linkedTo {
		out[k] = v
	}
	return out
}
