// Package fakebackend is an in-memory record backend speaking the subset of
// the REST dialect the sync engine uses: client-credentials token exchange,
// object create/update, queries, describe and content uploads.
//
// It backs the end-to-end tests and the cmd/fakebackend development server.
package fakebackend

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	objectUser           = "Field_User__c"
	objectContentVersion = "ContentVersion"

	defaultPageSize = 2000
)

// Fields is one stored object.
type Fields map[string]any

type failure struct {
	remaining int
	status    int
}

// Backend holds the objects and the issued tokens.
type Backend struct {
	mu sync.Mutex

	clientID     string
	clientSecret string
	now          func() time.Time
	pageSize     int

	tokens  map[string]struct{}
	objects map[string]map[string]Fields
	order   map[string][]string
	choices map[string]map[string][]string
	cursors map[string][]Fields
	fail    map[string]*failure
	seq     int

	requests map[string]int
}

type Option func(*Backend)

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithPageSize limits query pages, so clients have to follow
// nextRecordsUrl.
func WithPageSize(n int) Option {
	return func(b *Backend) { b.pageSize = n }
}

func New(clientID, clientSecret string, opts ...Option) *Backend {
	b := &Backend{
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
		pageSize:     defaultPageSize,
		tokens:       map[string]struct{}{},
		objects:      map[string]map[string]Fields{},
		order:        map[string][]string{},
		choices:      map[string]map[string][]string{},
		cursors:      map[string][]Fields{},
		fail:         map[string]*failure{},
		requests:     map[string]int{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Handler returns the gin engine serving the backend.
func (b *Backend) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), b.count)

	// reachability probes
	r.HEAD("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.POST("/services/oauth2/token", b.token)

	api := r.Group("/services/data/:version", b.authorize)
	api.POST("/sobjects/:kind", b.create)
	api.PATCH("/sobjects/:kind/:id", b.update)
	api.GET("/sobjects/:kind/describe", b.describe)
	api.GET("/query", b.query)
	api.GET("/query/:cursor", b.queryMore)

	return r
}

// AddUser stores a field user and returns its id.
func (b *Backend) AddUser(name, pin string, active bool, permissions ...string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insert(objectUser, Fields{
		"Name":           name,
		"PIN__c":         pin,
		"Is_Active__c":   active,
		"Permissions__c": strings.Join(permissions, ";"),
	})
}

// SetChoices sets the active picklist values of kind.field.
func (b *Backend) SetChoices(kind, field string, values ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.choices[kind] == nil {
		b.choices[kind] = map[string][]string{}
	}
	b.choices[kind][field] = slices.Clone(values)
}

// FailNext makes the next n writes to kind answer with status.
func (b *Backend) FailNext(kind string, n, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[kind] = &failure{remaining: n, status: status}
}

// RevokeTokens forgets every issued token.
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.tokens)
}

// Objects returns copies of the stored objects of kind in insertion order.
func (b *Backend) Objects(kind string) []Fields {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.list(kind)
}

// Object returns a copy of one stored object.
func (b *Backend) Object(kind, id string) (Fields, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.objects[kind][id]
	if !ok {
		return nil, false
	}
	return maps.Clone(f), true
}

// Requests returns how many requests hit route, e.g. "POST /services/oauth2/token".
func (b *Backend) Requests(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[route]
}

func (b *Backend) count(c *gin.Context) {
	c.Next()
	route := c.FullPath()
	if route == "" {
		return
	}
	b.mu.Lock()
	b.requests[c.Request.Method+" "+route]++
	b.mu.Unlock()
}

func (b *Backend) list(kind string) []Fields {
	out := make([]Fields, 0, len(b.order[kind]))
	for _, id := range b.order[kind] {
		out = append(out, maps.Clone(b.objects[kind][id]))
	}
	return out
}

// insert must be called with mu held.
func (b *Backend) insert(kind string, f Fields) string {
	b.seq++
	id := idPrefix(kind) + fmt.Sprintf("%015d", b.seq)

	stored := maps.Clone(f)
	stored["Id"] = id
	stored["attributes"] = map[string]string{"type": kind}

	if b.objects[kind] == nil {
		b.objects[kind] = map[string]Fields{}
	}
	b.objects[kind][id] = stored
	b.order[kind] = append(b.order[kind], id)
	return id
}

// injected must be called with mu held.
func (b *Backend) injected(kind string) (int, bool) {
	f := b.fail[kind]
	if f == nil || f.remaining == 0 {
		return 0, false
	}
	f.remaining--
	return f.status, true
}

func idPrefix(kind string) string {
	switch kind {
	case objectUser:
		return "a01"
	case objectContentVersion:
		return "068"
	default:
		return "a02"
	}
}

func newToken() string {
	return "00D" + uuid.NewString()
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
