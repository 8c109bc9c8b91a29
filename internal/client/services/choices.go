package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

const choicesKeyPrefix = "choices:"

// ChoiceService keeps the backend's choice lists (vehicle types, colours)
// available offline.
type ChoiceService struct {
	remote client.Client
	store  MetadataStore
	net    Connectivity
	log    logging.Logger
}

func NewChoiceService(remote client.Client, store MetadataStore, net Connectivity, log logging.Logger) *ChoiceService {
	return &ChoiceService{remote: remote, store: store, net: net, log: log.With("component", "choices")}
}

func choicesKey(kind, field string) string {
	return choicesKeyPrefix + kind + "." + field
}

// Refresh fetches the active values of kind.field and caches them.
func (s *ChoiceService) Refresh(ctx context.Context, kind, field string) ([]string, error) {
	values, err := s.remote.DescribeChoiceField(ctx, kind, field)
	if errors.Is(err, common.ErrNotFound) || client.IsRejected(err, http.StatusNotFound) {
		// the field or its object is gone from the backend; so is the cached list
		if derr := s.store.DeleteMetadata(ctx, choicesKey(kind, field)); derr != nil {
			s.log.Warn(ctx, "failed to drop cached choices", "kind", kind, "field", field, "error", derr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("describe %s.%s: %w", kind, field, err)
	}

	b, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetMetadata(ctx, choicesKey(kind, field), b); err != nil {
		return nil, fmt.Errorf("cache %s.%s: %w", kind, field, err)
	}
	return values, nil
}

// Cached returns the stored values and when they were stored. Both are
// zero if nothing is cached.
func (s *ChoiceService) Cached(ctx context.Context, kind, field string) ([]string, time.Time, error) {
	b, at, err := s.store.GetMetadata(ctx, choicesKey(kind, field))
	if err != nil || b == nil {
		return nil, time.Time{}, err
	}

	var values []string
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode cached %s.%s: %w", kind, field, err)
	}
	return values, at, nil
}

// Get refreshes the list when the backend is reachable and falls back
// to the cache otherwise.
func (s *ChoiceService) Get(ctx context.Context, kind, field string) ([]string, error) {
	if s.net.Online(ctx) {
		values, err := s.Refresh(ctx, kind, field)
		if err == nil {
			return values, nil
		}
		s.log.Warn(ctx, "choice refresh failed, using cache", "kind", kind, "field", field, "error", err)
	}

	values, _, err := s.Cached(ctx, kind, field)
	return values, err
}

// CachedFields returns the "object.field" names that have a cached list.
func (s *ChoiceService) CachedFields(ctx context.Context) ([]string, error) {
	keys, err := s.store.MetadataKeys(ctx, choicesKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, choicesKeyPrefix))
	}
	return out, nil
}
