package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	instance    string
	err         error
	calls       atomic.Int32
	invalidated atomic.Int32
}

func (f *fakeAuth) Token(ctx context.Context) (models.CachedToken, error) {
	f.calls.Add(1)
	if f.err != nil {
		return models.CachedToken{}, f.err
	}
	return models.CachedToken{Value: "tok-1", TokenType: "Bearer", InstanceEndpoint: f.instance}, nil
}

func (f *fakeAuth) Invalidate() { f.invalidated.Add(1) }

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*HTTPClient, *fakeAuth) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	auth := &fakeAuth{instance: ts.URL}
	return NewHTTPClient(auth, "v59.0", logging.NewNop(), opts...), auth
}

func TestCreate_Success(t *testing.T) {
	var (
		gotPath, gotAuth, gotCT string
		gotBody                 map[string]any
	)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"a0B000000000001","success":true,"errors":[]}`)
	})

	id, err := c.Create(context.Background(), ObjectCapture, map[string]string{"Vehicle_Registration__c": "HTS977K"})
	require.NoError(t, err)
	assert.Equal(t, "a0B000000000001", id)
	assert.Equal(t, "POST /services/data/v59.0/sobjects/Vehicle_Capture__c", gotPath)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "HTS977K", gotBody["Vehicle_Registration__c"])
}

func TestCreate_SuccessFalse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"","success":false,"errors":[{"errorCode":"DUPLICATE_VALUE","message":"duplicate"}]}`)
	})

	_, err := c.Create(context.Background(), ObjectCapture, map[string]string{})
	require.Error(t, err)

	var rej *common.RemoteRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusOK, rej.Status)
	assert.Equal(t, "DUPLICATE_VALUE", rej.Errors[0].ErrorCode)
}

func TestCreate_Rejected(t *testing.T) {
	c, auth := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `[{"message":"Required fields are missing: [Captured_By__c]","errorCode":"REQUIRED_FIELD_MISSING","fields":["Captured_By__c"]}]`)
	})

	_, err := c.Create(context.Background(), ObjectCapture, map[string]string{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRemote)
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(0), auth.invalidated.Load())

	var rej *common.RemoteRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusBadRequest, rej.Status)
	require.Len(t, rej.Errors, 1)
	assert.Equal(t, []string{"Captured_By__c"}, rej.Errors[0].Fields)
	assert.Contains(t, err.Error(), "REQUIRED_FIELD_MISSING")
}

func TestUnauthorizedInvalidatesToken(t *testing.T) {
	c, auth := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`)
	})

	err := c.Update(context.Background(), ObjectUser, "a0X1", map[string]string{"x": "y"})
	require.Error(t, err)
	assert.True(t, IsRejected(err, http.StatusUnauthorized))
	assert.Equal(t, int32(1), auth.invalidated.Load())
	assert.Equal(t, int32(1), auth.calls.Load(), "no internal retry")
}

func TestAuthFailureStopsBeforeRequest(t *testing.T) {
	var hits atomic.Int32
	c, auth := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	auth.err = &common.AuthError{Op: "token", Err: errors.New("bad secret")}

	_, err := c.Query(context.Background(), "SELECT Id FROM X")
	require.ErrorIs(t, err, common.ErrAuth)
	assert.Equal(t, int32(0), hits.Load())
}

func TestUpdate_NoContent(t *testing.T) {
	var got string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Update(context.Background(), ObjectUser, "a0X1", NewLastLoginPayload(time.Now())))
	assert.Equal(t, "PATCH /services/data/v59.0/sobjects/Field_User__c/a0X1", got)
}

func TestQuery_FollowsPagination(t *testing.T) {
	var queries []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/data/v59.0/query":
			queries = append(queries, r.URL.Query().Get("q"))
			_, _ = io.WriteString(w, `{"totalSize":3,"done":false,"records":[{"Id":"1"},{"Id":"2"}],"nextRecordsUrl":"/services/data/v59.0/query/01gXX-2000"}`)
		case "/services/data/v59.0/query/01gXX-2000":
			_, _ = io.WriteString(w, `{"totalSize":3,"done":true,"records":[{"Id":"3"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	type row struct {
		ID string `json:"Id"`
	}
	rows, err := QueryAs[row](context.Background(), c, "SELECT Id FROM Vehicle_Capture__c WHERE Make__c = 'VW'")
	require.NoError(t, err)
	assert.Equal(t, []row{{"1"}, {"2"}, {"3"}}, rows)
	assert.Equal(t, []string{"SELECT Id FROM Vehicle_Capture__c WHERE Make__c = 'VW'"}, queries)
}

func TestUploadAttachment(t *testing.T) {
	var body contentVersion
	var path string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"id":"068000000000001","success":true}`)
	})

	data := []byte{0xff, 0xd8, 0xff, 0xe0}
	id, err := c.UploadAttachment(context.Background(), "a0B1", "IMG_0042", data, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "068000000000001", id)
	assert.Equal(t, "/services/data/v59.0/sobjects/ContentVersion", path)
	assert.Equal(t, "IMG_0042", body.Title)
	assert.Equal(t, "IMG_0042.jpg", body.PathOnClient)
	assert.Equal(t, "a0B1", body.FirstPublishLocationID)

	decoded, err := base64.StdEncoding.DecodeString(body.VersionData)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	_, err = c.UploadAttachment(context.Background(), "", "x.jpg", data, "image/jpeg")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestWithExtension(t *testing.T) {
	assert.Equal(t, "photo.png", withExtension("photo.png", "image/jpeg"))
	assert.Equal(t, "photo.jpg", withExtension("photo", "image/jpeg"))
	assert.Equal(t, "scan.pdf", withExtension("scan", "application/pdf"))
	assert.Equal(t, "blob", withExtension("blob", ""))
	assert.Equal(t, "attachment", withExtension("", ""))
}

func TestDescribeChoiceField(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/data/v59.0/sobjects/Vehicle_Capture__c/describe" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"name":"Vehicle_Capture__c","fields":[
			{"name":"Id","picklistValues":[]},
			{"name":"Colour__c","picklistValues":[
				{"value":"Black","label":"Black","active":true},
				{"value":"Beige","label":"Beige","active":false},
				{"value":"White","label":"White","active":true}]}]}`)
	})

	values, err := c.DescribeChoiceField(context.Background(), ObjectCapture, "Colour__c")
	require.NoError(t, err)
	assert.Equal(t, []string{"Black", "White"}, values)

	_, err = c.DescribeChoiceField(context.Background(), ObjectCapture, "Nope__c")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestTimeoutIsNetworkError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, WithTimeout(20*time.Millisecond))

	_, err := c.Create(context.Background(), ObjectCapture, map[string]string{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNetwork)
	assert.True(t, IsTransient(err))
}

func TestConnectionRefusedIsNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := NewHTTPClient(&fakeAuth{instance: url}, "", logging.NewNop())
	err := c.Update(context.Background(), ObjectUser, "x", map[string]string{})
	require.ErrorIs(t, err, common.ErrNetwork)
}

func TestRateLimit(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}, WithRateLimit(1, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Update(ctx, ObjectUser, "a", map[string]string{}))
	err := c.Update(ctx, ObjectUser, "b", map[string]string{})
	require.ErrorIs(t, err, common.ErrNetwork, "second call would exceed the deadline while throttled")
	assert.Equal(t, int32(1), hits.Load())
}

func TestNewRejection_OAuthStyleBody(t *testing.T) {
	rej := newRejection(http.StatusBadRequest, []byte(`{"error":"invalid_client","error_description":"invalid client credentials"}`))
	require.Len(t, rej.Errors, 1)
	assert.Equal(t, "invalid_client", rej.Errors[0].ErrorCode)

	rej = newRejection(http.StatusBadGateway, []byte("<html>bad gateway</html>"))
	assert.Empty(t, rej.Errors)
	assert.True(t, strings.Contains(rej.Error(), "bad gateway"))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", &common.NetworkError{Op: "x", Err: errors.New("refused")}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"500", &common.RemoteRejection{Status: 500}, true},
		{"503 wrapped", errors.Join(errors.New("ctx"), &common.RemoteRejection{Status: 503}), true},
		{"408", &common.RemoteRejection{Status: 408}, true},
		{"429", &common.RemoteRejection{Status: 429}, true},
		{"400", &common.RemoteRejection{Status: 400}, false},
		{"auth", &common.AuthError{Op: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
