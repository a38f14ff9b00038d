package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/carreras-sync/internal/blob"
	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/events"
	"github.com/UkralStul/carreras-sync/internal/identity"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/realtime"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"github.com/UkralStul/carreras-sync/internal/storage/gormstore"
	"github.com/UkralStul/carreras-sync/internal/storage/inmemory"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret-that-is-long-enough-for-hs256"
	testTimeout  = 2 * time.Second
	testInterval = 10 * time.Millisecond
)

type testServer struct {
	url   string
	store storage.Store
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Toasts []notify.Toast  `json:"toasts"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := inmemory.New(gormstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for _, id := range []string{"user-1", "user-2"} {
		name := "Corredor " + id
		require.NoError(t, store.Insert(context.Background(), &domain.Profile{Base: domain.Base{ID: id}, DisplayName: &name}))
	}

	relay := events.NewRelay(nil)
	bus, err := events.NewBus(relay.Local(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	srv := httptest.NewServer(New(Options{
		Store:     store,
		Blobs:     blob.NewFS(afero.NewMemMapFs(), "/blobs", "http://cdn.test/storage"),
		Bus:       bus,
		Relay:     relay,
		JWTSecret: testSecret,
	}).Router())
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, store: store}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := identity.IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) send(t *testing.T, req *http.Request, tok string) (int, response) {
	t.Helper()
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) (int, response) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.url+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(t, req, tok)
}

func decodeData[T any](t *testing.T, r response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPosts_CreateAndList(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "user-1")

	status, resp := s.do(t, http.MethodPost, "/api/posts/", tok, map[string]any{
		"title": "Entrenamiento", "content": "Sábado temprano", "category": "general",
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	created := decodeData[domain.Post](t, resp)
	assert.Equal(t, domain.CategoryGeneral, created.Category)
	require.Len(t, resp.Toasts, 1)
	assert.Equal(t, notify.Default, resp.Toasts[0].Variant)

	status, resp = s.do(t, http.MethodGet, "/api/posts/?category=temas%20generales", "", nil)
	require.Equal(t, http.StatusOK, status)
	posts := decodeData[[]domain.Post](t, resp)
	require.Len(t, posts, 1)
	assert.Equal(t, "Corredor user-1", posts[0].AuthorName)

	status, resp = s.do(t, http.MethodGet, "/api/posts/categories", "", nil)
	require.Equal(t, http.StatusOK, status)
	counts := decodeData[map[string]int](t, resp)
	assert.Equal(t, 1, counts[string(domain.CategoryGeneral)])
	assert.Equal(t, 0, counts[string(domain.CategoryMarketplace)])
}

func TestPosts_Authentication(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{"title": "t", "content": "c"}

	status, resp := s.do(t, http.MethodPost, "/api/posts/", "", body)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.Len(t, resp.Toasts, 1)
	assert.Equal(t, notify.Destructive, resp.Toasts[0].Variant)

	status, _ = s.do(t, http.MethodPost, "/api/posts/", "not-a-jwt", body)
	assert.Equal(t, http.StatusUnauthorized, status)

	n, err := storage.Count[domain.Post](context.Background(), s.store, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPosts_ForeignUpdateForbidden(t *testing.T) {
	s := newTestServer(t)
	_, resp := s.do(t, http.MethodPost, "/api/posts/", token(t, "user-1"), map[string]any{"title": "Mío", "content": "c"})
	post := decodeData[domain.Post](t, resp)

	status, _ := s.do(t, http.MethodPatch, "/api/posts/"+post.ID+"/", token(t, "user-2"),
		map[string]any{"title": "Ajeno", "content": "c"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodPost, "/api/posts/", token(t, "user-1"), map[string]any{"title": "", "content": ""})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRaces_CreateWithCompanionPost(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "user-1")

	status, resp := s.do(t, http.MethodPost, "/api/races", tok, map[string]any{
		"title": "Clásico de Pirque", "description": "Dos cuadras", "comuna": "Pirque", "date": "2025-03-01",
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	race := decodeData[domain.Race](t, resp)

	_, resp = s.do(t, http.MethodGet, "/api/posts/?category=proximas%20carreras", "", nil)
	posts := decodeData[[]domain.Post](t, resp)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].RaceID)
	assert.Equal(t, race.ID, *posts[0].RaceID)
	assert.Contains(t, posts[0].Content, "sábado, 1 de marzo de 2025")

	status, _ = s.do(t, http.MethodPost, "/api/races", tok, map[string]any{"title": "Sin fecha", "comuna": "Pirque"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodDelete, "/api/races/"+race.ID, tok, nil)
	require.Equal(t, http.StatusOK, status)
	_, resp = s.do(t, http.MethodGet, "/api/posts/", "", nil)
	assert.Empty(t, decodeData[[]domain.Post](t, resp))
}

func TestRaces_DeleteReachesRelayClients(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "user-1")

	client, err := events.DialWebSocket(context.Background(), "ws"+strings.TrimPrefix(s.url, "http")+"/ws/events")
	require.NoError(t, err)
	tab, err := events.NewBus(client, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tab.Close() })

	var mu sync.Mutex
	var got []events.Event
	tab.Subscribe(func(e events.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	seen := func(typ events.Type) int {
		mu.Lock()
		defer mu.Unlock()
		n := 0
		for _, e := range got {
			if e.Type == typ {
				n++
			}
		}
		return n
	}

	// Подключение регистрируется в relay асинхронно: создаём гонки, пока вкладка не услышит первую
	var raceID string
	require.Eventually(t, func() bool {
		status, resp := s.do(t, http.MethodPost, "/api/races", tok, map[string]any{
			"title": "Clásico de Pirque", "comuna": "Pirque", "date": "2025-03-01",
		})
		if status != http.StatusCreated {
			return false
		}
		raceID = decodeData[domain.Race](t, resp).ID
		return seen(events.TypeRaceCreated) > 0
	}, testTimeout, 5*testInterval)

	status, resp := s.do(t, http.MethodDelete, "/api/races/"+raceID, tok, nil)
	require.Equal(t, http.StatusOK, status, resp.Error)

	require.Eventually(t, func() bool { return seen(events.TypeRaceDeleted) == 1 }, testTimeout, testInterval)
	assert.Never(t, func() bool { return seen(events.TypeRaceDeleted) > 1 }, 20*testInterval, testInterval)

	mu.Lock()
	defer mu.Unlock()
	last := got[len(got)-1]
	assert.Equal(t, events.TypeRaceDeleted, last.Type)
	assert.Equal(t, raceID, last.Payload.RaceID)
}

func TestSearch_PostsAndRaces(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "user-1")
	for _, body := range []map[string]any{
		{"title": "Clásico de Pirque", "content": "Dos cuadras", "category": "general"},
		{"title": "Vendo montura", "content": "Retiro en PIRQUE", "category": "compra venta"},
		{"title": "Otro", "content": "Nada", "category": "general"},
	} {
		status, resp := s.do(t, http.MethodPost, "/api/posts/", tok, body)
		require.Equal(t, http.StatusCreated, status, resp.Error)
	}

	_, resp := s.do(t, http.MethodGet, "/api/posts/?q=pirque", "", nil)
	assert.Len(t, decodeData[[]domain.Post](t, resp), 2)
	_, resp = s.do(t, http.MethodGet, "/api/posts/?q=pirque&category=general", "", nil)
	assert.Len(t, decodeData[[]domain.Post](t, resp), 1)
	_, resp = s.do(t, http.MethodGet, "/api/posts/?q=rodeo", "", nil)
	assert.Empty(t, decodeData[[]domain.Post](t, resp))

	status, resp := s.do(t, http.MethodPost, "/api/races", tok, map[string]any{
		"title": "Desafío", "description": "Revancha", "comuna": "Rancagua", "date": "2025-03-01",
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	_, resp = s.do(t, http.MethodGet, "/api/races?q=RANCAGUA", "", nil)
	assert.Len(t, decodeData[[]domain.Race](t, resp), 1)
	_, resp = s.do(t, http.MethodGet, "/api/races?q=talca", "", nil)
	assert.Empty(t, decodeData[[]domain.Race](t, resp))
}

func TestProfiles_LookupAndSearch(t *testing.T) {
	s := newTestServer(t)

	status, resp := s.do(t, http.MethodGet, "/api/profiles/user-2", "", nil)
	require.Equal(t, http.StatusOK, status, resp.Error)
	profile := decodeData[domain.Profile](t, resp)
	require.NotNil(t, profile.DisplayName)
	assert.Equal(t, "Corredor user-2", *profile.DisplayName)

	status, _ = s.do(t, http.MethodGet, "/api/profiles/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Свой профиль исключается из выбора собеседника
	_, resp = s.do(t, http.MethodGet, "/api/profiles?q=CORREDOR", token(t, "user-1"), nil)
	found := decodeData[[]domain.Profile](t, resp)
	require.Len(t, found, 1)
	assert.Equal(t, "user-2", found[0].ID)

	_, resp = s.do(t, http.MethodGet, "/api/profiles?q=zzz", "", nil)
	assert.Empty(t, decodeData[[]domain.Profile](t, resp))
}

func TestAttendance_Toggle(t *testing.T) {
	s := newTestServer(t)
	_, resp := s.do(t, http.MethodPost, "/api/posts/", token(t, "user-1"), map[string]any{"title": "Carrera", "content": "c"})
	post := decodeData[domain.Post](t, resp)
	path := "/api/posts/" + post.ID + "/attendance"

	status, resp := s.do(t, http.MethodPost, path, token(t, "user-2"), nil)
	require.Equal(t, http.StatusOK, status, resp.Error)
	view := decodeData[attendanceView](t, resp)
	assert.True(t, view.Attending)
	assert.EqualValues(t, 1, view.Count)

	_, resp = s.do(t, http.MethodGet, path, token(t, "user-1"), nil)
	view = decodeData[attendanceView](t, resp)
	assert.False(t, view.Attending)
	assert.EqualValues(t, 1, view.Count)
}

func TestPolls_VoteReturnsPercentages(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "user-1")
	_, resp := s.do(t, http.MethodPost, "/api/posts/", tok, map[string]any{"title": "Encuesta", "content": "c"})
	post := decodeData[domain.Post](t, resp)

	status, resp := s.do(t, http.MethodPost, "/api/posts/"+post.ID+"/polls", tok,
		map[string]any{"question": "¿Quién gana?", "options": []string{"Rayo", "Trueno"}})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	poll := decodeData[domain.Poll](t, resp)
	require.Len(t, poll.Options, 2)

	status, resp = s.do(t, http.MethodPost, "/api/posts/"+post.ID+"/polls/"+poll.ID+"/vote", tok,
		map[string]any{"option_id": poll.Options[0].ID})
	require.Equal(t, http.StatusOK, status, resp.Error)
	view := decodeData[pollsView](t, resp)
	assert.InDelta(t, 100, view.Results[poll.ID][poll.Options[0].ID], 0.001)
	assert.InDelta(t, 0, view.Results[poll.ID][poll.Options[1].ID], 0.001)
}

func TestMessages_Conversations(t *testing.T) {
	s := newTestServer(t)
	status, resp := s.do(t, http.MethodPost, "/api/messages", token(t, "user-1"),
		map[string]any{"receiver_id": "user-2", "content": "¿Vas el sábado?"})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	msg := decodeData[domain.DirectMessage](t, resp)

	_, resp = s.do(t, http.MethodGet, "/api/messages/conversations", token(t, "user-2"), nil)
	convs := decodeData[[]map[string]any](t, resp)
	require.Len(t, convs, 1)
	assert.EqualValues(t, 1, convs[0]["unread_count"])

	status, _ = s.do(t, http.MethodPost, "/api/messages/"+msg.ID+"/read", token(t, "user-1"), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(t, http.MethodPost, "/api/messages/"+msg.ID+"/read", token(t, "user-2"), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestProfile_AvatarUpload(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "yo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.url+"/api/profile/avatar", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	status, resp := s.send(t, req, token(t, "user-1"))
	require.Equal(t, http.StatusCreated, status, resp.Error)
	out := decodeData[map[string]string](t, resp)
	assert.True(t, strings.HasPrefix(out["url"], "http://cdn.test/storage/avatars/user-1/"), out["url"])
}

func TestChanges_StreamsFilteredRows(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	post := &domain.Post{UserID: "user-1", Title: "t", Content: "c", Category: domain.CategoryGeneral}
	require.NoError(t, s.store.Insert(ctx, post))

	url := "ws" + strings.TrimPrefix(s.url, "http") + "/ws/changes?table=comments&post_id=" + post.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	got := make(chan realtime.Change, 16)
	go func() {
		for {
			var c realtime.Change
			if err := conn.ReadJSON(&c); err != nil {
				return
			}
			got <- c
		}
	}()

	// Подписка появляется после upgrade, поэтому пишем, пока не придёт первое уведомление
	require.Eventually(t, func() bool {
		if err := s.store.Insert(ctx, &domain.Comment{PostID: post.ID, UserID: "user-2", Content: "hola"}); err != nil {
			return false
		}
		select {
		case c := <-got:
			return c.Table == "comments" && c.Type == realtime.Insert && c.Scope["post_id"] == post.ID
		case <-time.After(testInterval):
			return false
		}
	}, testTimeout, testInterval)
}

func TestChanges_UnknownTable(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.url + "/ws/changes?table=users")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
