package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bloodfinder/internal/aiclient"
	"bloodfinder/internal/alert"
	"bloodfinder/internal/auth"
	"bloodfinder/internal/chat"
	"bloodfinder/internal/config"
	"bloodfinder/internal/dashboard"
	"bloodfinder/internal/donor"
	"bloodfinder/internal/emergency"
	"bloodfinder/internal/metrics"
	"bloodfinder/internal/relay"
	"bloodfinder/internal/telegram"
)

type scriptedAsker struct {
	requests []aiclient.Request
}

func (s *scriptedAsker) Ask(_ context.Context, req aiclient.Request) (aiclient.Reply, error) {
	s.requests = append(s.requests, req)
	var rows []aiclient.Row
	if err := json.Unmarshal([]byte(`[{"name":"A","phone":"919876543210"},{"name":"B","phone":"919812345678"}]`), &rows); err != nil {
		return aiclient.Reply{}, err
	}
	return aiclient.Reply{Answer: "Found 2. Call 9876543211 now", Rows: rows, SessionID: "s1"}, nil
}

type harness struct {
	router   *gin.Engine
	logs     *observer.ObservedLogs
	asker    *scriptedAsker
	tgCalls  *atomic.Int32
	tgStatus int
}

func newHarness(t *testing.T, env map[string]string) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{asker: &scriptedAsker{}, tgCalls: &atomic.Int32{}, tgStatus: http.StatusOK}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.tgCalls.Add(1)
		w.WriteHeader(h.tgStatus)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	t.Cleanup(upstream.Close)

	base := map[string]string{
		config.KeyAIChatEndpoint: "http://ai.invalid/chat",
		config.KeyAdminEmail:     "admin@vgu.ac.in",
		config.KeyAdminPassword:  "pw",
		config.KeyTGBotToken:     "bot-secret-123",
		config.KeyTGChannelID:    "@vgu",
		"TG_API_BASE":            upstream.URL,
	}
	for k, v := range env {
		if v == "" {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	cfg := config.FromLookup(func(k string) (string, bool) {
		v, ok := base[k]
		return v, ok
	})

	core, logs := observer.New(zap.InfoLevel)
	h.logs = logs

	tg := telegram.NewClient(cfg.TGAPIBase, cfg.TGBotToken, nil)
	donors := donor.NewService(donor.NewMemoryRepository(), cfg.CountryCode)
	emergencies := emergency.NewService(emergency.NewMemoryRepository(),
		alert.NewDirect(tg, cfg.TGChannelID, cfg.Branding.AppName), cfg.CountryCode, nil)

	handler := New(Deps{
		Config:      cfg,
		Donors:      donors,
		Emergencies: emergencies,
		Dashboard:   dashboard.NewService(donors, emergencies),
		Sessions: auth.NewSessions(auth.Options{
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
			SigningKey:    cfg.SessionKey,
			Issuer:        cfg.SessionIssuer,
			TTL:           time.Hour,
		}, nil),
		Relay:  relay.NewHandler(tg, cfg.TGChannelID, cfg.RelayResponse, cfg.Branding.AppName, nil),
		Chats:  chat.NewRegistry(h.asker, time.Hour),
		Logger: zap.New(core),
	})
	h.router = NewRouter(handler, RouterOptions{})
	return h
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) login(t *testing.T) string {
	t.Helper()
	w := h.do(http.MethodPost, "/api/login", "", `{"email":"admin@vgu.ac.in","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestConfigListsMissingKeys(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodGet, "/api/config", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var pub config.Public
	decode(t, w, &pub)
	assert.Equal(t, "VGU Blood Finder AI", pub.AppName)
	assert.Contains(t, pub.Missing, config.KeyWACoordinator)
	assert.Contains(t, pub.Missing, config.KeyDatabaseURL)
	assert.NotContains(t, pub.Missing, "SUPABASE_URL")
	assert.NotContains(t, pub.Missing, config.KeyAIChatEndpoint)
	assert.NotContains(t, w.Body.String(), "bot-secret-123")

	assert.Equal(t, "http://example.com/register", pub.RegisterURL)
	assert.True(t, strings.HasPrefix(pub.ShareURL, "https://wa.me/?text="), pub.ShareURL)

	mem := newHarness(t, map[string]string{"STORE_BACKEND": "memory", config.KeyPublicURL: "https://blood.vgu.ac.in"})
	decode(t, mem.do(http.MethodGet, "/api/config", "", ""), &pub)
	assert.NotContains(t, pub.Missing, config.KeyDatabaseURL)
	assert.Equal(t, "https://blood.vgu.ac.in/register", pub.RegisterURL)
	assert.Contains(t, pub.ShareURL, "blood.vgu.ac.in%2Fregister")
}

func TestSessionGate(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/donors", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/login", "", `{"email":"admin@vgu.ac.in","password":"nope"}`).Code)

	token := h.login(t)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/donors", token, "").Code)

	var sess auth.Session
	decode(t, h.do(http.MethodGet, "/api/session", token, ""), &sess)
	assert.True(t, sess.Authenticated)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/api/logout", token, "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/donors", token, "").Code)
	decode(t, h.do(http.MethodGet, "/api/session", token, ""), &sess)
	assert.False(t, sess.Authenticated)
}

func TestRegisterListAndExportDonors(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodPost, "/api/donors", "",
		`{"full_name":"Asha","role":"Student","branch":"Mechanical","class_year":2,"blood_group":"O+","phone_e164":"9876543210"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d donor.Donor
	decode(t, w, &d)
	assert.Equal(t, "919876543210", d.PhoneE164)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/donors", "", `{"full_name":"X","role":"Student","blood_group":"Z+","phone_e164":"9876543210"}`).Code)

	token := h.login(t)
	var page donorPageView
	decode(t, h.do(http.MethodGet, "/api/donors?blood_group=O%2B&branch=mech", token, ""), &page)
	assert.Equal(t, 1, page.Count)
	require.Len(t, page.Donors, 1)
	assert.True(t, strings.HasPrefix(page.Donors[0].ContactURL, "https://wa.me/919876543210?text=Hi%20Asha"), page.Donors[0].ContactURL)
	assert.Contains(t, page.Donors[0].ContactURL, "VGU%20Blood%20Finder%20AI")

	// A raw '+' arrives as a space.
	decode(t, h.do(http.MethodGet, "/api/donors?blood_group=O+", token, ""), &page)
	assert.Equal(t, 1, page.Count)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/donors?page=x", token, "").Code)
	w = h.do(http.MethodGet, "/api/donors?page=400000000000000000&limit=25", token, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	var branches struct {
		Branches []string `json:"branches"`
	}
	decode(t, h.do(http.MethodGet, "/api/donors/branches?prefix=Me", token, ""), &branches)
	assert.Equal(t, []string{"Mechanical"}, branches.Branches)

	w = h.do(http.MethodGet, "/api/donors/export.csv", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), `attachment; filename="donors_`))
	assert.True(t, strings.HasSuffix(w.Header().Get("Content-Disposition"), `.csv"`))
	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "full_name", rows[0][1])

	w = h.do(http.MethodGet, "/api/donors/export.xlsx", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
}

func TestEmergencyLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodPost, "/api/emergencies", "", `{"blood_group":"B-","hospital":"City","contact_phone":"9876543210"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created emergency.Created
	decode(t, w, &created)
	assert.True(t, created.AlertSent)
	assert.Equal(t, int32(1), h.tgCalls.Load())

	var list struct {
		Requests []emergency.Request `json:"requests"`
	}
	decode(t, h.do(http.MethodGet, "/api/emergencies", "", ""), &list)
	require.Len(t, list.Requests, 1)

	token := h.login(t)
	path := "/api/emergencies/" + created.Request.ID + "/status"
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPatch, path, "", `{"status":"fulfilled"}`).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodPatch, path, token, `{"status":"fulfilled"}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPatch, path, token, `{"status":"done"}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPatch, path, token, `{}`).Code)
	require.Equal(t, 1, h.logs.FilterMessage("emergency status changed").Len())
	assert.Equal(t, created.Request.ID, h.logs.FilterMessage("emergency status changed").All()[0].ContextMap()["request_id"])
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPatch, "/api/emergencies/6f1c2b7e-4a0f-4a38-9d55-3f1f7d3c1a22/status", token, `{"status":"cancelled"}`).Code)

	var stats dashboard.Stats
	decode(t, h.do(http.MethodGet, "/api/dashboard/stats", token, ""), &stats)
	assert.Equal(t, 0, stats.OpenEmergencies)
}

func TestEmergencySavedWhenAlertFails(t *testing.T) {
	h := newHarness(t, nil)
	h.tgStatus = http.StatusForbidden

	w := h.do(http.MethodPost, "/api/emergencies", "", `{"blood_group":"A+"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created emergency.Created
	decode(t, w, &created)
	assert.False(t, created.AlertSent)
	assert.NotEmpty(t, created.AlertWarning)
}

func TestRelayRoutes(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/telegram-send", "", `{"text":""}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, h.do(http.MethodGet, "/api/telegram-send", "", "").Code)
	assert.Equal(t, int32(0), h.tgCalls.Load())

	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/telegram-send", "", `{"text":"hi"}`).Code)
	assert.Equal(t, int32(1), h.tgCalls.Load())

	unconfigured := newHarness(t, map[string]string{config.KeyTGBotToken: ""})
	w := unconfigured.do(http.MethodPost, "/api/telegram-send", "", `{"text":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	assert.Equal(t, int32(0), unconfigured.tgCalls.Load())
}

func TestRequestBodiesAreBound(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/login", "", `{"email":"admin@vgu.ac.in"}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/emergencies", "", `{"blood_group":"O+","units_needed":-1}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/emergencies", "", `{"units_needed":2}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/donors", "", `{"full_name":"Asha","role":"Student","blood_group":"O+","phone_e164":"9876543210"}`).Code)
	assert.Equal(t, int32(0), h.tgCalls.Load())

	w := h.do(http.MethodPost, "/api/chat", "", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var tr transcriptView
	decode(t, w, &tr)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/chat/"+tr.ID+"/messages", "", `{"message":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/chat/"+tr.ID+"/feedback/"+tr.Messages[0].ID, "", `{"vote":"meh"}`).Code)
	assert.Empty(t, h.asker.requests)
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.ChatConversations), 1.0)
}

func TestChatFlow(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodPost, "/api/chat", "", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var tr transcriptView
	decode(t, w, &tr)
	require.Len(t, tr.Messages, 1)
	assert.NotEmpty(t, tr.Messages[0].HTML)

	w = h.do(http.MethodPost, "/api/chat/"+tr.ID+"/messages", "", `{"message":"find O+ donors"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var turn turnView
	decode(t, w, &turn)
	assert.Contains(t, turn.Reply.HTML, `href="https://wa.me/9876543211"`)
	require.NotNil(t, turn.Reply.Table)
	assert.Equal(t, "https://wa.me/919876543210", turn.Reply.Table.Rows[0][1].Link)
	assert.Empty(t, turn.User.HTML)

	w = h.do(http.MethodPost, "/api/chat/"+tr.ID+"/messages", "", `{"message":"more?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, h.asker.requests, 2)
	assert.Equal(t, "s1", h.asker.requests[1].SessionID)

	w = h.do(http.MethodPost, "/api/chat/"+tr.ID+"/feedback/"+turn.Reply.ID, "", `{"vote":"up"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/api/chat/"+tr.ID+"/regenerate/"+turn.Reply.ID, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, h.asker.requests, 3)

	decode(t, h.do(http.MethodGet, "/api/chat/"+tr.ID, "", ""), &tr)
	assert.Equal(t, "s1", tr.SessionID)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/chat/unknown", "", "").Code)
}

func TestChatBlockedWithoutEndpoint(t *testing.T) {
	h := newHarness(t, map[string]string{config.KeyAIChatEndpoint: ""})
	w := h.do(http.MethodPost, "/api/chat", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), config.KeyAIChatEndpoint)
}
