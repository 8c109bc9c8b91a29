package fakebackend

import (
	"encoding/base64"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type errorItem struct {
	ErrorCode string   `json:"errorCode"`
	Message   string   `json:"message"`
	Fields    []string `json:"fields,omitempty"`
}

func reject(c *gin.Context, status int, code, msg string, fields ...string) {
	c.AbortWithStatusJSON(status, []errorItem{{ErrorCode: code, Message: msg, Fields: fields}})
}

func (b *Backend) token(c *gin.Context) {
	id, secret, ok := c.Request.BasicAuth()
	if !ok {
		id, secret = c.PostForm("client_id"), c.PostForm("client_secret")
	}

	if c.PostForm("grant_type") != "client_credentials" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_grant_type",
			"error_description": "grant type not supported",
		})
		return
	}
	if id != b.clientID || secret != b.clientSecret {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_client",
			"error_description": "invalid client credentials",
		})
		return
	}

	tok := newToken()

	b.mu.Lock()
	b.tokens[tok] = struct{}{}
	issued := b.now()
	b.mu.Unlock()

	base := "http://" + c.Request.Host
	c.JSON(http.StatusOK, gin.H{
		"access_token": tok,
		"token_type":   "Bearer",
		"instance_url": base,
		"id":           base + "/id/00D/005",
		"issued_at":    millis(issued),
		"signature":    base64.StdEncoding.EncodeToString([]byte(tok)),
	})
}

func (b *Backend) authorize(c *gin.Context) {
	tok, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")

	b.mu.Lock()
	_, known := b.tokens[tok]
	b.mu.Unlock()

	if !ok || !known {
		reject(c, http.StatusUnauthorized, "INVALID_SESSION_ID", "Session expired or invalid")
		return
	}
	c.Next()
}

func (b *Backend) create(c *gin.Context) {
	kind := c.Param("kind")

	var body Fields
	if err := c.ShouldBindJSON(&body); err != nil {
		reject(c, http.StatusBadRequest, "JSON_PARSER_ERROR", err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if status, ok := b.injected(kind); ok {
		reject(c, status, "SERVER_UNAVAILABLE", "injected failure")
		return
	}

	if kind == objectContentVersion {
		parent, _ := body["FirstPublishLocationId"].(string)
		if !b.exists(parent) {
			reject(c, http.StatusBadRequest, "INVALID_CROSS_REFERENCE_KEY", "invalid cross reference id", "FirstPublishLocationId")
			return
		}
		data, _ := body["VersionData"].(string)
		if _, err := base64.StdEncoding.DecodeString(data); err != nil {
			reject(c, http.StatusBadRequest, "INVALID_FIELD", "VersionData is not base64", "VersionData")
			return
		}
	}

	id := b.insert(kind, body)
	c.JSON(http.StatusCreated, gin.H{"id": id, "success": true, "errors": []errorItem{}})
}

// exists must be called with mu held.
func (b *Backend) exists(id string) bool {
	for _, objs := range b.objects {
		if _, ok := objs[id]; ok {
			return true
		}
	}
	return false
}

func (b *Backend) update(c *gin.Context) {
	kind, id := c.Param("kind"), c.Param("id")

	var body Fields
	if err := c.ShouldBindJSON(&body); err != nil {
		reject(c, http.StatusBadRequest, "JSON_PARSER_ERROR", err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if status, ok := b.injected(kind); ok {
		reject(c, status, "SERVER_UNAVAILABLE", "injected failure")
		return
	}

	obj, ok := b.objects[kind][id]
	if !ok {
		reject(c, http.StatusNotFound, "NOT_FOUND", "The requested resource does not exist")
		return
	}
	for k, v := range body {
		if k == "Id" || k == "attributes" {
			continue
		}
		obj[k] = v
	}
	c.Status(http.StatusNoContent)
}

type picklistValue struct {
	Value  string `json:"value"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

type describeField struct {
	Name           string          `json:"name"`
	PicklistValues []picklistValue `json:"picklistValues"`
}

func (b *Backend) describe(c *gin.Context) {
	kind := c.Param("kind")

	b.mu.Lock()
	defer b.mu.Unlock()

	fields := []describeField{}
	for name, values := range b.choices[kind] {
		f := describeField{Name: name, PicklistValues: []picklistValue{}}
		for _, v := range values {
			f.PicklistValues = append(f.PicklistValues, picklistValue{Value: v, Label: v, Active: true})
		}
		fields = append(fields, f)
	}
	c.JSON(http.StatusOK, gin.H{"name": kind, "fields": fields})
}

var (
	fromRe = regexp.MustCompile(`(?i)\bFROM\s+(\w+)`)
	// field = 'literal' with backslash escapes
	whereRe = regexp.MustCompile(`(?i)\bWHERE\s+(\w+)\s*=\s*'((?:[^'\\]|\\.)*)'`)
	limitRe = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)`)
)

var unescaper = strings.NewReplacer(`\\`, `\`, `\'`, `'`, `\n`, "\n", `\r`, "\r", `\t`, "\t")

func (b *Backend) query(c *gin.Context) {
	q := c.Query("q")

	m := fromRe.FindStringSubmatch(q)
	if m == nil {
		reject(c, http.StatusBadRequest, "MALFORMED_QUERY", "unexpected token")
		return
	}
	kind := m[1]

	b.mu.Lock()
	defer b.mu.Unlock()

	rows := b.list(kind)
	if w := whereRe.FindStringSubmatch(q); w != nil {
		field, want := w[1], unescaper.Replace(w[2])
		filtered := rows[:0]
		for _, r := range rows {
			if v, _ := r[field].(string); v == want {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	if l := limitRe.FindStringSubmatch(q); l != nil {
		if n, _ := strconv.Atoi(l[1]); n < len(rows) {
			rows = rows[:n]
		}
	}

	b.page(c, rows, len(rows))
}

func (b *Backend) queryMore(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows, ok := b.cursors[c.Param("cursor")]
	if !ok {
		reject(c, http.StatusBadRequest, "INVALID_QUERY_LOCATOR", "invalid query locator")
		return
	}
	delete(b.cursors, c.Param("cursor"))
	b.page(c, rows, -1)
}

// page writes the first page of rows and parks the rest behind a cursor.
// It must be called with mu held.
func (b *Backend) page(c *gin.Context, rows []Fields, total int) {
	resp := gin.H{"done": true}
	if total >= 0 {
		resp["totalSize"] = total
	}

	if len(rows) > b.pageSize {
		cursor := uuid.NewString()
		b.cursors[cursor] = rows[b.pageSize:]
		rows = rows[:b.pageSize]
		resp["done"] = false
		resp["nextRecordsUrl"] = "/services/data/" + c.Param("version") + "/query/" + cursor
	}

	resp["records"] = rows
	c.JSON(http.StatusOK, resp)
}
