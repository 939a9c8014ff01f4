package pricing

import (
	"fmt"
	"sync"
)

// MemoryRuleStore is an in-memory RuleRepository. Suitable for tests and
// single-instance deployments; rule sets are small enough that List
// copying is not a concern.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[string]Rule)}
}

func (s *MemoryRuleStore) Get(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	return r, ok
}

func (s *MemoryRuleStore) List() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	return out
}

func (s *MemoryRuleStore) Upsert(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return nil
}

// ReplaceAll swaps the full rule set, dropping rules absent from the new
// set. Used when reloading rules from persistent storage.
func (s *MemoryRuleStore) ReplaceAll(rules []Rule) {
	next := make(map[string]Rule, len(rules))
	for _, r := range rules {
		if r.ID != "" {
			next[r.ID] = r
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = next
}

func (s *MemoryRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("rule %s not found", id)
	}
	delete(s.rules, id)
	return nil
}
