package store

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/victornm/quotient/internal/errors"
)

// Memory is an in-process Store. It is used for local runs and tests.
type Memory struct {
	mu   sync.Mutex
	docs map[string]map[string]*memDoc
	seq  int64
	now  func() time.Time
}

type memDoc struct {
	seq        int64
	data       map[string]any
	createTime time.Time
	updateTime time.Time
}

type MemoryOption func(*Memory)

// WithClock overrides the time source used for create and update times.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		docs: make(map[string]map[string]*memDoc),
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Memory) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[collection][id]
	if !ok {
		return nil, errors.NotFound(entity(collection), id)
	}

	return d.document(collection, id)
}

func (m *Memory) List(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type row struct {
		id string
		d  *memDoc
	}

	var rows []row
	for id, d := range m.docs[collection] {
		ok, err := d.match(filters)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row{id: id, d: d})
		}
	}

	slices.SortFunc(rows, func(a, b row) int {
		if c := a.d.createTime.Compare(b.d.createTime); c != 0 {
			return c
		}
		return cmp.Compare(a.d.seq, b.d.seq)
	})

	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.d.document(collection, r.id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	return docs, nil
}

func (m *Memory) Create(_ context.Context, collection, id string, data any) (*Document, error) {
	fields, err := toFields(data)
	if err != nil {
		return nil, err
	}

	if id == "" {
		if id, err = NewID(); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[collection][id]; ok {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("%s already exists: id=%s", entity(collection), id))
	}
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]*memDoc)
	}

	m.seq++
	now := m.now()
	d := &memDoc{
		seq:        m.seq,
		data:       fields,
		createTime: now,
		updateTime: now,
	}
	m.docs[collection][id] = d

	return d.document(collection, id)
}

func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]any) (*Document, error) {
	patch, err := toFields(fields)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[collection][id]
	if !ok {
		return nil, errors.NotFound(entity(collection), id)
	}

	for k, v := range patch {
		d.data[k] = v
	}
	d.updateTime = m.now()

	return d.document(collection, id)
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[collection][id]; !ok {
		return errors.NotFound(entity(collection), id)
	}
	delete(m.docs[collection], id)

	return nil
}

func (m *Memory) AppendToArray(_ context.Context, collection, id, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[collection][id]
	if !ok {
		return errors.NotFound(entity(collection), id)
	}

	arr, _ := d.data[field].([]any)
	if slices.Contains(arr, any(value)) {
		return nil
	}
	d.data[field] = append(slices.Clone(arr), value)
	d.updateTime = m.now()

	return nil
}

func (m *Memory) RemoveFromArray(_ context.Context, collection, id, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[collection][id]
	if !ok {
		return errors.NotFound(entity(collection), id)
	}

	arr, _ := d.data[field].([]any)
	kept := make([]any, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok && s == value {
			continue
		}
		kept = append(kept, v)
	}
	d.data[field] = kept
	d.updateTime = m.now()

	return nil
}

func (d *memDoc) document(collection, id string) (*Document, error) {
	b, err := json.Marshal(d.data)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	return &Document{
		Collection: collection,
		ID:         id,
		Data:       b,
		CreateTime: d.createTime,
		UpdateTime: d.updateTime,
	}, nil
}

func (d *memDoc) match(filters []Filter) (bool, error) {
	for _, f := range filters {
		v, ok := d.data[f.Field]
		if !ok {
			return false, nil
		}

		switch f.Op {
		case OpEqual:
			eq, err := jsonEqual(v, f.Value)
			if err != nil || !eq {
				return false, err
			}
		case OpContains:
			want, _ := f.Value.(string)
			switch fv := v.(type) {
			case []any:
				if !slices.Contains(fv, any(want)) {
					return false, nil
				}
			case string:
				if !strings.Contains(fv, want) {
					return false, nil
				}
			default:
				return false, nil
			}
		default:
			return false, fmt.Errorf("store: unsupported filter op %d", f.Op)
		}
	}

	return true, nil
}

func jsonEqual(a, b any) (bool, error) {
	ab, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}

// toFields normalizes data to its JSON object form.
func toFields(data any) (map[string]any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}

	return fields, nil
}
