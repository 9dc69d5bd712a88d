package testutil

import (
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// MockDB wraps sqlmock for easier testing
type MockDB struct {
	DB   *sqlx.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a new mock database for unit testing.
// Use this when you want to test repository logic without a real database.
//
// Usage:
//
//	mockDB := testutil.NewMockDB(t)
//	defer mockDB.Close()
//
//	mockDB.ExpectQuery("SELECT").WillReturnRows(...)
//	store := repository.NewStore(database.Wrap(mockDB.DB, logger.Nop()), time.Second)
func NewMockDB(t *testing.T) *MockDB {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	return &MockDB{
		DB:   sqlx.NewDb(db, "postgres"),
		Mock: mock,
	}
}

// Close closes the mock database connection
func (m *MockDB) Close() error {
	return m.DB.Close()
}

// ExpectQuery sets up an expected query
func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

// ExpectExec sets up an expected exec
func (m *MockDB) ExpectExec(query string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(query))
}

// ExpectBegin sets up an expected transaction begin
func (m *MockDB) ExpectBegin() *sqlmock.ExpectedBegin {
	return m.Mock.ExpectBegin()
}

// ExpectCommit sets up an expected commit
func (m *MockDB) ExpectCommit() *sqlmock.ExpectedCommit {
	return m.Mock.ExpectCommit()
}

// ExpectRollback sets up an expected rollback
func (m *MockDB) ExpectRollback() *sqlmock.ExpectedRollback {
	return m.Mock.ExpectRollback()
}

// ExpectLockedTx expects a transaction opened with a bounded lock wait.
//
// Usage:
//
//	mockDB.ExpectLockedTx(5 * time.Second)
//	mockDB.ExpectQuery("SELECT ...").WillReturnRows(...)
//	mockDB.ExpectCommit()
func (m *MockDB) ExpectLockedTx(timeout time.Duration) {
	m.Mock.ExpectBegin()
	m.Mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf("SET LOCAL lock_timeout = %d", timeout.Milliseconds()))).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

// ExpectationsWereMet verifies all expectations were met
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// MockRows creates a new mock rows object
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyTime is a matcher for any time.Time value
type AnyTime struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// MockPublisher records inventory events for later verification. It is
// safe for concurrent use.
type MockPublisher struct {
	mu        sync.Mutex
	Movements []domain.LedgerEntry
	Changes   []domain.StatusChange
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishStockMovement records a ledger entry
func (m *MockPublisher) PublishStockMovement(_ context.Context, entry domain.LedgerEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Movements = append(m.Movements, entry)
}

// PublishStatusChanged records a status transition
func (m *MockPublisher) PublishStatusChanged(_ context.Context, change domain.StatusChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Changes = append(m.Changes, change)
}

// AssertMovementPublished checks that a movement of the given type was published
func (m *MockPublisher) AssertMovementPublished(t *testing.T, typ domain.TransactionType) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Movements {
		if e.Type == typ {
			return
		}
	}
	t.Errorf("expected a %s movement to be published, but none was", typ)
}

// AssertNoEventsPublished checks that nothing was published
func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Movements)+len(m.Changes) > 0 {
		t.Errorf("expected no events, but got %d movements and %d status changes", len(m.Movements), len(m.Changes))
	}
}

// Reset clears all recorded events
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Movements = nil
	m.Changes = nil
}
