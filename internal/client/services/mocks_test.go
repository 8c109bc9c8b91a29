package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/stretchr/testify/mock"
)

var t0 = time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore(t *testing.T, now func() time.Time) *store.Store {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "fieldsync.db"), logging.NewNop(), store.WithClock(now))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Create(ctx context.Context, kind string, payload any) (string, error) {
	args := m.Called(ctx, kind, payload)
	return args.String(0), args.Error(1)
}

func (m *mockClient) Update(ctx context.Context, kind, id string, payload any) error {
	args := m.Called(ctx, kind, id, payload)
	return args.Error(0)
}

func (m *mockClient) Query(ctx context.Context, statement string) ([]json.RawMessage, error) {
	args := m.Called(ctx, statement)
	rows, _ := args.Get(0).([]json.RawMessage)
	return rows, args.Error(1)
}

func (m *mockClient) UploadAttachment(ctx context.Context, parentID, fileName string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, parentID, fileName, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockClient) DescribeChoiceField(ctx context.Context, kind, field string) ([]string, error) {
	args := m.Called(ctx, kind, field)
	values, _ := args.Get(0).([]string)
	return values, args.Error(1)
}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) EnsureAuthenticated(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// switchable is a connectivity source tests can flip.
type switchable struct {
	online bool
}

func (s *switchable) Online(context.Context) bool { return s.online }
