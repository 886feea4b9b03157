// Package stateful provides the session storage engine backing stateful
// mock endpoints: one named JSON collection per endpoint with CRUD
// semantics keyed by a configurable identifier field.
package stateful

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mockrelay/mockrelay/pkg/mock"
)

// DefaultIDField is used when an endpoint does not configure one.
const DefaultIDField = "id"

// Collection is a thread-safe, insertion-ordered set of JSON documents.
type Collection struct {
	mu      sync.RWMutex
	idField string
	order   []string
	items   map[string]map[string]any
}

// NewCollection creates a collection with the given identifier field and
// optional seed documents.
func NewCollection(idField string, seed []map[string]any) *Collection {
	if idField == "" {
		idField = DefaultIDField
	}
	c := &Collection{
		idField: idField,
		items:   make(map[string]map[string]any),
	}
	for _, doc := range seed {
		c.Create(copyDoc(doc))
	}
	return c
}

// IDField returns the identifier field name.
func (c *Collection) IDField() string {
	return c.idField
}

// List returns all documents in insertion order.
func (c *Collection) List() []map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]map[string]any, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, copyDoc(c.items[id]))
	}
	return out
}

// Get returns the document with the given ID, or nil.
func (c *Collection) Get(id string) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.items[id]
	if !ok {
		return nil
	}
	return copyDoc(doc)
}

// Create stores a document, assigning a generated identifier when the
// document has none, and returns the stored copy.
func (c *Collection) Create(doc map[string]any) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, _ := doc[c.idField].(string)
	if id == "" {
		id = uuid.NewString()
		doc[c.idField] = id
	}
	if _, exists := c.items[id]; !exists {
		c.order = append(c.order, id)
	}
	c.items[id] = copyDoc(doc)
	return copyDoc(doc)
}

// Update replaces the document with the given ID. Returns false when the
// document does not exist.
func (c *Collection) Update(id string, doc map[string]any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	doc[c.idField] = id
	c.items[id] = copyDoc(doc)
	return true
}

// Patch merges fields into the document with the given ID. Returns the
// patched document, or nil when it does not exist.
func (c *Collection) Patch(id string, fields map[string]any) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.items[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		if k == c.idField {
			continue
		}
		doc[k] = v
	}
	return copyDoc(doc)
}

// Delete removes the document with the given ID. Returns false when it
// does not exist.
func (c *Collection) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Count returns the number of documents.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func copyDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Store holds one collection per stateful endpoint, created lazily from
// the endpoint's spec.
type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

// NewStore creates an empty collection store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Collection returns the collection for the endpoint, creating and seeding
// it on first use.
func (s *Store) Collection(e *mock.Endpoint) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[e.ID]; ok {
		return c
	}
	idField := DefaultIDField
	var seed []map[string]any
	if e.Stateful != nil {
		if e.Stateful.IDField != "" {
			idField = e.Stateful.IDField
		}
		seed = e.Stateful.Seed
	}
	c := NewCollection(idField, seed)
	s.collections[e.ID] = c
	return c
}

// Reset drops the collection for the given endpoint ID.
func (s *Store) Reset(endpointID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, endpointID)
}
