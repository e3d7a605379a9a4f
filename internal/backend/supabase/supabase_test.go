package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/aidplug-crm/internal/blob"
	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/queue"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

type seenRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   []byte
}

// fakeProject records requests and answers with the handler registered for
// "METHOD /path".
type fakeProject struct {
	mu       sync.Mutex
	seen     []seenRequest
	handlers map[string]http.HandlerFunc
}

func newFakeProject(t *testing.T) (*fakeProject, *httptest.Server) {
	t.Helper()
	fp := &fakeProject{handlers: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fp.mu.Lock()
		fp.seen = append(fp.seen, seenRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone(), Body: body})
		h := fp.handlers[r.Method+" "+r.URL.Path]
		fp.mu.Unlock()
		if h == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return fp, srv
}

func (fp *fakeProject) on(route string, h http.HandlerFunc) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.handlers[route] = h
}

func (fp *fakeProject) last() seenRequest {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.seen[len(fp.seen)-1]
}

func (fp *fakeProject) count(route string) int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	n := 0
	for _, s := range fp.seen {
		if s.Method+" "+s.Path == route {
			n++
		}
	}
	return n
}

func jsonReply(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func sessionJSON(userID, access, refresh string, expiresIn int) map[string]any {
	return map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    expiresIn,
		"user": map[string]any{
			"id":            userID,
			"email":         userID + "@example.com",
			"user_metadata": map[string]any{"full_name": "Test User"},
		},
	}
}

func TestListSendsPostgrestQuery(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("GET /rest/v1/tasks", jsonReply(200, []map[string]any{
		{"id": "t1", "user_id": "u1", "title": "Call", "type": "call", "priority": "high", "due_date": "2024-06-08", "status": "pending"},
	}))

	c := New(srv.URL, "anon-key")
	tbl := NewTable[model.Task](c, repository.TableTasks, repository.StaticPrincipal("u1"))

	opts := repository.Where(
		repository.Lt("due_date", model.MustDate("2024-06-08")),
		repository.Neq("status", model.TaskCompleted),
	).OrderedBy("due_date", true)
	tasks, err := tbl.List(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.MustDate("2024-06-08"), tasks[0].DueDate)

	req := fp.last()
	assert.Equal(t, []string{"*"}, req.Query["select"])
	assert.Equal(t, []string{"due_date.asc"}, req.Query["order"])
	assert.Equal(t, []string{"lt.2024-06-08"}, req.Query["due_date"])
	assert.Equal(t, []string{"neq.completed"}, req.Query["status"])
	assert.Equal(t, "anon-key", req.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", req.Header.Get("Authorization"))
}

func TestListSearchUsesOrIlike(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("GET /rest/v1/leads", jsonReply(200, []any{}))

	tbl := NewTable[model.Lead](New(srv.URL, "anon"), repository.TableLeads, repository.StaticPrincipal("u1"))
	leads, err := tbl.List(context.Background(), repository.Matching("ali, co", "full_name", "email"))
	require.NoError(t, err)
	assert.NotNil(t, leads)
	assert.Empty(t, leads)

	req := fp.last()
	assert.Equal(t, []string{`(full_name.ilike."%ali, co%",email.ilike."%ali, co%")`}, req.Query["or"])
	assert.Equal(t, []string{"created_at.desc"}, req.Query["order"])
}

func TestGetReportsMissingRowAsNotFound(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("GET /rest/v1/deals", jsonReply(406, map[string]any{
		"code":    "PGRST116",
		"message": "JSON object requested, multiple (or no) rows returned",
	}))

	tbl := NewTable[model.Deal](New(srv.URL, "anon"), repository.TableDeals, repository.StaticPrincipal("u1"))
	got, err := tbl.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, got.Found)

	req := fp.last()
	assert.Equal(t, []string{"eq.d1"}, req.Query["id"])
	assert.Equal(t, objectMediaType, req.Header.Get("Accept"))
}

func TestGetFailureIsAnError(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("GET /rest/v1/deals", jsonReply(500, map[string]any{"message": "db down"}))

	tbl := NewTable[model.Deal](New(srv.URL, "anon"), repository.TableDeals, repository.StaticPrincipal("u1"))
	_, err := tbl.Get(context.Background(), "d1")
	var re *appErrors.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 500, re.Status)
	assert.Equal(t, "db down", re.Message)
}

func TestInsertStampsOwner(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("POST /rest/v1/leads", jsonReply(201, map[string]any{
		"id": "l1", "user_id": "u1", "full_name": "Ali", "qualification_status": "warm", "urgency_level": "high",
	}))

	tbl := NewTable[model.Lead](New(srv.URL, "anon"), repository.TableLeads, repository.StaticPrincipal("u1"))
	lead, err := tbl.Insert(context.Background(), model.LeadInput{FullName: model.Ptr("Ali")})
	require.NoError(t, err)
	assert.Equal(t, "l1", lead.ID)

	req := fp.last()
	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, map[string]any{"full_name": "Ali", "user_id": "u1"}, body)
	assert.Equal(t, "return=representation", req.Header.Get("Prefer"))
}

func TestInsertWithoutPrincipal(t *testing.T) {
	_, srv := newFakeProject(t)
	tbl := NewTable[model.Lead](New(srv.URL, "anon"), repository.TableLeads, repository.StaticPrincipal(""))
	_, err := tbl.Insert(context.Background(), model.LeadInput{})
	assert.ErrorIs(t, err, appErrors.ErrNotAuthenticated)
}

func TestUpdateSendsNullAndTimestamp(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("PATCH /rest/v1/deals", jsonReply(200, map[string]any{"id": "d1", "stage": "unsuccessful"}))

	tbl := NewTable[model.Deal](New(srv.URL, "anon"), repository.TableDeals, repository.StaticPrincipal("u1"))
	tbl.now = func() time.Time { return time.Date(2024, 6, 8, 10, 0, 0, 0, time.UTC) }

	stage := model.StageUnsuccessful
	deal, err := tbl.Update(context.Background(), "d1", model.DealInput{Stage: &stage, CompletedDate: model.ClearDate()})
	require.NoError(t, err)
	assert.Equal(t, model.StageUnsuccessful, deal.Stage)

	req := fp.last()
	assert.Equal(t, []string{"eq.d1"}, req.Query["id"])
	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Contains(t, body, "completed_date")
	assert.Nil(t, body["completed_date"])
	assert.Equal(t, "2024-06-08T10:00:00Z", body["updated_at"])
}

func TestUpdateMissingRow(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("PATCH /rest/v1/tasks", jsonReply(406, map[string]any{"code": "PGRST116"}))

	tbl := NewTable[model.Task](New(srv.URL, "anon"), repository.TableTasks, repository.StaticPrincipal("u1"))
	_, err := tbl.Update(context.Background(), "t1", model.TaskInput{})
	assert.True(t, appErrors.IsNotFound(err))
}

func TestCountReadsContentRange(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("HEAD /rest/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "*/42")
		w.WriteHeader(http.StatusOK)
	})

	tbl := NewTable[model.Task](New(srv.URL, "anon"), repository.TableTasks, repository.StaticPrincipal("u1"))
	n, err := tbl.Count(context.Background(), repository.Where(repository.Eq("status", "pending")))
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	req := fp.last()
	assert.Equal(t, "count=exact", req.Header.Get("Prefer"))
	assert.Equal(t, []string{"eq.pending"}, req.Query["status"])
}

func TestParseContentRange(t *testing.T) {
	n, err := parseContentRange("0-9/57")
	require.NoError(t, err)
	assert.Equal(t, 57, n)

	for _, bad := range []string{"", "0-9", "0-9/*", "0-9/x"} {
		_, err := parseContentRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestSignInPersistsAndAuthorizes(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("POST /auth/v1/token", jsonReply(200, sessionJSON("u1", "access-1", "refresh-1", 3600)))
	fp.on("GET /rest/v1/clients", jsonReply(200, []any{}))

	q := queue.NewInMemoryQueue(nil)
	var mu sync.Mutex
	var events []string
	_, err := q.Subscribe(queue.TopicAuthState, func(p any) error {
		mu.Lock()
		events = append(events, p.(repository.AuthEvent).Event)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	store := FileSessionStore{Path: filepath.Join(t.TempDir(), "session.json")}
	c := New(srv.URL, "anon")
	auth := NewAuth(c, store, q, nil)

	s, err := auth.SignIn(context.Background(), "u1@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.User.ID)

	signIn := fp.last()
	assert.Equal(t, []string{"password"}, signIn.Query["grant_type"])

	uid, err := auth.UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	_, err = NewTables(c, auth).Clients.List(context.Background(), repository.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-1", fp.last().Header.Get("Authorization"))

	persisted, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "refresh-1", persisted.RefreshToken)

	q.Flush()
	mu.Lock()
	assert.Equal(t, []string{repository.AuthSignedIn}, events)
	mu.Unlock()
}

func TestExpiredSessionIsRefreshed(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("POST /auth/v1/token", jsonReply(200, sessionJSON("u1", "access-2", "refresh-2", 3600)))
	fp.on("GET /rest/v1/deals", jsonReply(200, []any{}))

	store := FileSessionStore{Path: filepath.Join(t.TempDir(), "session.json")}
	require.NoError(t, store.Save(&model.Session{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Hour).Unix(),
		User:         model.User{ID: "u1"},
	}))

	c := New(srv.URL, "anon")
	auth := NewAuth(c, store, nil, nil)

	_, err := NewTables(c, auth).Deals.List(context.Background(), repository.ListOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, fp.count("POST /auth/v1/token"))
	assert.Equal(t, "Bearer access-2", fp.last().Header.Get("Authorization"))

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", persisted.RefreshToken)
}

func TestSignUpPendingConfirmation(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("POST /auth/v1/signup", jsonReply(200, map[string]any{"id": "u2", "email": "new@example.com"}))

	auth := NewAuth(New(srv.URL, "anon"), nil, nil, nil)
	user, s, err := auth.SignUp(context.Background(), "new@example.com", "secret1", "New Person")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, "u2", user.ID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(fp.last().Body, &body))
	assert.Equal(t, map[string]any{"full_name": "New Person"}, body["data"])

	_, err = auth.UserID(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrNotAuthenticated)
}

func TestAuthErrorMessage(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("POST /auth/v1/token", jsonReply(400, map[string]any{
		"error":             "invalid_grant",
		"error_description": "Invalid login credentials",
	}))

	auth := NewAuth(New(srv.URL, "anon"), nil, nil, nil)
	_, err := auth.SignIn(context.Background(), "a@b.co", "wrongpw")
	assert.Equal(t, "Invalid login credentials", appErrors.Message(err))
}

func TestSignOutClearsSession(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("POST /auth/v1/token", jsonReply(200, sessionJSON("u1", "access-1", "refresh-1", 3600)))
	fp.on("POST /auth/v1/logout", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	store := FileSessionStore{Path: filepath.Join(t.TempDir(), "session.json")}
	auth := NewAuth(New(srv.URL, "anon"), store, nil, nil)
	_, err := auth.SignIn(context.Background(), "u1@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, auth.SignOut(context.Background()))
	assert.Equal(t, "Bearer access-1", fp.last().Header.Get("Authorization"))

	s, err := auth.Session(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestSignOutFailureKeepsSession(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("POST /auth/v1/token", jsonReply(200, sessionJSON("u1", "access-1", "refresh-1", 3600)))
	fp.on("POST /auth/v1/logout", jsonReply(500, map[string]any{"msg": "unavailable"}))

	auth := NewAuth(New(srv.URL, "anon"), nil, nil, nil)
	_, err := auth.SignIn(context.Background(), "u1@example.com", "secret1")
	require.NoError(t, err)

	assert.Error(t, auth.SignOut(context.Background()))
	uid, err := auth.UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestResetPasswordRedirect(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("POST /auth/v1/recover", jsonReply(200, map[string]any{}))

	auth := NewAuth(New(srv.URL, "anon"), nil, nil, nil)
	require.NoError(t, auth.ResetPassword(context.Background(), "a@b.co", "https://crm.example.com/reset-password"))

	req := fp.last()
	assert.Equal(t, []string{"https://crm.example.com/reset-password"}, req.Query["redirect_to"])
	assert.JSONEq(t, `{"email":"a@b.co"}`, string(req.Body))
}

func TestUpdatePasswordNeedsSession(t *testing.T) {
	_, srv := newFakeProject(t)
	auth := NewAuth(New(srv.URL, "anon"), nil, nil, nil)
	_, err := auth.UpdatePassword(context.Background(), "newsecret")
	assert.True(t, errors.Is(err, appErrors.ErrNotAuthenticated))
}

func TestStorageUploadUpserts(t *testing.T) {
	fp, srv := newFakeProject(t)
	fp.on("POST /storage/v1/object/avatars/u1/profile.png", jsonReply(200, map[string]any{"Key": "avatars/u1/profile.png"}))

	st := NewStorage(New(srv.URL, "anon"), "avatars")
	info, err := st.Put(context.Background(), "u1/profile.png", strings.NewReader("img"), blob.PutOptions{ContentType: "image/png", Upsert: true})
	require.NoError(t, err)

	req := fp.last()
	assert.Equal(t, "true", req.Header.Get("x-upsert"))
	assert.Equal(t, "image/png", req.Header.Get("Content-Type"))
	assert.Equal(t, "img", string(req.Body))
	assert.Equal(t, srv.URL+"/storage/v1/object/public/avatars/u1/profile.png", info.URL)
}
