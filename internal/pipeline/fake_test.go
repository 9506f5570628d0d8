/*-------------------------------------------------------------------------
 *
 * LATS Admin - Pipeline Test Helpers
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"lats-admin/internal/records"
	"lats-admin/internal/source"
	"lats-admin/internal/store"
)

// memStore is an in-memory destination with a unique phone key and
// all-or-nothing batches
type memStore struct {
	mu   sync.Mutex
	rows map[string]records.Contact

	// violation returns a constraint message for records the store refuses
	violation func(records.Contact) string
	// insertErr, when set, is returned for the n-th InsertMany (1-based)
	insertErr func(n int) error
	lookupErr error
	onInsert  func(n int)

	inserts  int
	lookups  int
	inFlight int
	maxSeen  int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]records.Contact)}
}

func (m *memStore) ExistingKeys(ctx context.Context, keys []string) (records.KeySet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	found := make(records.KeySet)
	for _, k := range keys {
		if _, ok := m.rows[k]; ok {
			found.Add(k)
		}
	}
	return found, nil
}

func (m *memStore) InsertMany(ctx context.Context, batch []records.Contact) (store.InsertResult, error) {
	m.mu.Lock()
	m.inserts++
	n := m.inserts
	m.inFlight++
	m.maxSeen = max(m.maxSeen, m.inFlight)
	hook := m.onInsert
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()
	if hook != nil {
		hook(n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertErr != nil {
		if err := m.insertErr(n); err != nil {
			return store.InsertResult{}, err
		}
	}
	if m.violation != nil {
		for _, c := range batch {
			if msg := m.violation(c); msg != "" {
				return store.InsertResult{}, fmt.Errorf("%w: %s", store.ErrBatchWrite, msg)
			}
		}
	}

	var res store.InsertResult
	for _, c := range batch {
		if _, ok := m.rows[c.Phone]; ok {
			res.Existing = append(res.Existing, c.Phone)
			continue
		}
		m.rows[c.Phone] = c
		res.Inserted++
	}
	return res, nil
}

func (m *memStore) Diagnose(ctx context.Context, batch []records.Contact) []records.RecordError {
	var errs []records.RecordError
	for i, c := range batch {
		if m.violation == nil {
			break
		}
		if msg := m.violation(c); msg != "" {
			errs = append(errs, records.RecordError{
				Line: c.Line, Index: i + 1, Phone: c.Phone,
				Stage: records.StageUpsert, Reason: msg,
			})
		}
	}
	return errs
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memSink collects rejected records
type memSink struct {
	mu   sync.Mutex
	errs []records.RecordError
}

func (s *memSink) Write(e records.RecordError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, e)
	return nil
}

// fixture is one CSV row
type fixture struct {
	Name, Phone, Email string
}

// fakeCustomers generates n customers with distinct local phone numbers
func fakeCustomers(n int) []fixture {
	faker := gofakeit.New(42)
	rows := make([]fixture, n)
	for i := range rows {
		rows[i] = fixture{
			Name:  faker.Name(),
			Phone: fmt.Sprintf("07%08d", 10000000+i),
			Email: faker.Email(),
		}
	}
	return rows
}

// canonical is the normalized form of a fakeCustomers phone
func canonical(local string) string {
	return "+255" + local[1:]
}

func writeCSV(t *testing.T, rows []fixture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "customers.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write([]string{"Name", "Phone", "Email"}))
	for _, r := range rows {
		require.NoError(t, w.Write([]string{r.Name, r.Phone, r.Email}))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return path
}

func openCSV(t *testing.T, path string) source.Source {
	t.Helper()
	src, err := source.Open(path, source.FormatCSV, source.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.BatchDelay = 0
	opts.Source = "test"
	return opts
}
