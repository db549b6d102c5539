package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queuebot/audio"
)

type fakeSession struct {
	mu     sync.Mutex
	played []audio.PlayRequest
}

func (f *fakeSession) Play(_ context.Context, req audio.PlayRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, req)
	return nil
}

func (f *fakeSession) Stop(uuid.UUID) bool         { return true }
func (f *fakeSession) Leave(context.Context) error { return nil }

type fakeConnector struct {
	sessions map[string]audio.Session
}

func (f *fakeConnector) Join(_ context.Context, guildID, _ string) (audio.Session, error) {
	return f.sessions[guildID], nil
}

func (f *fakeConnector) Session(guildID string) (audio.Session, bool) {
	s, ok := f.sessions[guildID]
	return s, ok
}

type fixture struct {
	player *audio.Service
	conn   *fakeConnector
	hub    *Hub
	srv    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	resolver := audio.ResolverFunc(func(_ context.Context, locator string) (audio.Track, error) {
		if strings.Contains(locator, "missing") {
			return audio.Track{}, &audio.SourceError{Kind: audio.SourceNotFound, Locator: locator}
		}
		return audio.Track{
			URL:       locator,
			Title:     "Title " + locator,
			Author:    "Uploader",
			Thumbnail: "https://i.ytimg.com/x.jpg",
			Duration:  200 * time.Second,
		}, nil
	})
	queues := audio.NewQueueManager()
	router := audio.NewRouter(queues, resolver, nil, nil)
	conn := &fakeConnector{sessions: map[string]audio.Session{}}
	player := audio.NewService(queues, router, resolver, conn, nil)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(NewServer(player, hub, "*", nil).Router())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &fixture{player: player, conn: conn, hub: hub, srv: srv}
}

func (f *fixture) seed(t *testing.T, guildID string, urls ...string) {
	t.Helper()
	sess := &fakeSession{}
	f.conn.sessions[guildID] = sess
	for _, u := range urls {
		_, _, err := f.player.Enqueue(context.Background(), guildID, "", u)
		require.NoError(t, err)
	}
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestPing(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/api/ping")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "owo", body["status"])
}

func TestGuildsWithQueues(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/api/guilds/with_queues")
	require.NoError(t, err)
	var empty []string
	decode(t, resp, &empty)
	assert.Empty(t, empty)

	f.seed(t, "200", "a")
	f.seed(t, "100", "b")

	resp, err = http.Get(f.srv.URL + "/api/guilds/with_queues")
	require.NoError(t, err)
	var guilds []string
	decode(t, resp, &guilds)
	assert.Equal(t, []string{"100", "200"}, guilds)
}

func TestQueue(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/api/queues/queue/42")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var apiErr map[string]string
	decode(t, resp, &apiErr)
	assert.Equal(t, "not found", apiErr["error"])

	f.seed(t, "42", "a", "b")

	resp, err = http.Get(f.srv.URL + "/api/queues/queue/42")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tracks []Track
	decode(t, resp, &tracks)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Title a", *tracks[0].Title)
	assert.Equal(t, "Title b", *tracks[1].Title)
	assert.Equal(t, "Uploader", *tracks[0].Author.Name)
	assert.Equal(t, authorIconURL, *tracks[0].Author.IconURL)
	assert.Equal(t, uint64(200), *tracks[0].LengthSecs)
	assert.Equal(t, "a", *tracks[0].URL)
}

func postSong(t *testing.T, f *fixture, guildID, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/api/queues/queue/"+guildID+"/add-song", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func TestAddSong(t *testing.T) {
	f := newFixture(t)

	resp := postSong(t, f, "42", `{"track_url":"c"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	f.seed(t, "42", "a")

	resp = postSong(t, f, "42", `{"track_url":"c"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var track Track
	decode(t, resp, &track)
	assert.Equal(t, "Title c", *track.Title)

	tracks, err := f.player.Tracks("42")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "c", tracks[1].Track.URL)

	resp = postSong(t, f, "42", `{"track_url":"missing"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()

	resp = postSong(t, f, "42", `{"track_url":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postSong(t, f, "42", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAddSong_QueueWithoutSession(t *testing.T) {
	f := newFixture(t)
	f.player.Queues().Get("42")

	resp := postSong(t, f, "42", `{"track_url":"c"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/queues/queue/1/add-song", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestWebsocketNotifications(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

	var welcome map[string]any
	require.NoError(t, ws.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome["type"])

	// the welcome is only written once the hub has the client
	f.hub.Notify(audio.Notification{GuildID: "42", Kind: audio.NotifyFinished, Message: "Finished playing `a`"})
	var got audio.Notification
	require.NoError(t, ws.ReadJSON(&got))
	assert.Equal(t, "42", got.GuildID)
	assert.Equal(t, audio.NotifyFinished, got.Kind)
}

func TestCheckOrigin(t *testing.T) {
	s := NewServer(nil, NewHub(nil), "http://localhost:3000", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	assert.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "http://evil.com")
	assert.False(t, s.checkOrigin(req))
}
