package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fmconsole/internal/backend"
	"fmconsole/internal/db"
	"fmconsole/internal/location"
	"fmconsole/internal/model"
	"fmconsole/internal/service"
	"fmconsole/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type upload struct {
	session, slot, name, contentType string
	body                             string
}

type fakeSessions struct {
	err      error
	lastCmd  service.Command
	upload   upload
	files    map[string]string
	options  []location.Option
	optLevel location.Level
}

func (f *fakeSessions) view(id string) (*service.View, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.View{ID: id, Kind: model.RecordTask, Status: model.SessionEditing}, nil
}

func (f *fakeSessions) Open(_ context.Context, kind model.RecordKind, id, _ string) (*service.View, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.View{ID: "sess-1", Kind: kind, Record: model.FormRecord{ID: id}}, nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*service.View, error) { return f.view(id) }

func (f *fakeSessions) Execute(_ context.Context, id string, cmd service.Command) (*service.View, error) {
	f.lastCmd = cmd
	return f.view(id)
}

func (f *fakeSessions) Submit(_ context.Context, id string) (*service.View, error) { return f.view(id) }

func (f *fakeSessions) Close(_ context.Context, id string) bool { return id == "sess-1" }

func (f *fakeSessions) Upload(_ context.Context, id, slot, name, contentType string, _ int64, r io.Reader) (*service.View, error) {
	b, _ := io.ReadAll(r)
	f.upload = upload{id, slot, name, contentType, string(b)}
	return f.view(id)
}

func (f *fakeSessions) OpenFile(_ context.Context, id, object string) (io.ReadCloser, error) {
	body, ok := f.files[object]
	if !ok || !strings.HasPrefix(object, "sessions/"+id+"/") {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeSessions) PeekDraft(context.Context, string) (*service.DraftInfo, error) {
	return nil, service.ErrNoDraft
}

func (f *fakeSessions) SaveDraft(_ context.Context, id string) (*service.View, error) {
	return f.view(id)
}

func (f *fakeSessions) LocationOptions(_ context.Context, level location.Level, _ string) ([]location.Option, error) {
	f.optLevel = level
	return f.options, nil
}

type fakeReports struct {
	err error
}

func (f *fakeReports) Get(_ context.Context, community, id string) (*service.ReportView, error) {
	return &service.ReportView{Community: community, ID: id, Status: "under_review"}, nil
}

func (f *fakeReports) UpdateStatus(_ context.Context, community, id, status string) (*service.ReportView, error) {
	if status == "bogus" {
		return nil, &model.ValidationError{Field: "status", Message: "Unknown report status: bogus"}
	}
	if f.err != nil {
		return &service.ReportView{Community: community, ID: id, Status: "under_review"}, f.err
	}
	return &service.ReportView{Community: community, ID: id, Status: status}, nil
}

type fakeSubmissions struct {
	params db.ListSubmissionsParams
}

func (f *fakeSubmissions) ListSubmissions(_ context.Context, p db.ListSubmissionsParams) ([]db.Submission, error) {
	f.params = p
	return []db.Submission{{ID: "sub-1", RecordKind: "task", RecordID: "9001", Status: "submitted", Answered: 3, CreatedAt: time.Unix(0, 0)}}, nil
}

func (f *fakeSubmissions) GetSubmissionByID(_ context.Context, id string) (db.Submission, error) {
	if id != "sub-1" {
		return db.Submission{}, pgx.ErrNoRows
	}
	return db.Submission{ID: id}, nil
}

type fakeVerifier struct{}

func (fakeVerifier) VerifyPreview(token string) (string, error) {
	if token != "good" {
		return "", storage.ErrBadSignature
	}
	return "sessions/sess-1/before_photo-01.jpg", nil
}

func newServer(t *testing.T, d Dependencies) *httptest.Server {
	t.Helper()
	d.Log = zap.NewNop()
	if d.Previews == nil {
		d.Previews = fakeVerifier{}
	}
	r := chi.NewRouter()
	r.Mount("/v1", Routes(d))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestOpenSession(t *testing.T) {
	srv := newServer(t, Dependencies{Sessions: &fakeSessions{}})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions", `{"kind":"task","id":"9001"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "sess-1", body["id"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions", `{"kind":"task"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", body["code"])
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &model.ValidationError{Step: 2, Field: "q_1", Message: "Required Field. Please answer: Clean?"}, http.StatusUnprocessableEntity, service.CodeValidation},
		{"wizard", fmt.Errorf("%w: stamp", service.ErrUnknownOp), http.StatusUnprocessableEntity, service.CodeValidation},
		{"missing", service.ErrSessionNotFound, http.StatusNotFound, service.CodeNotFound},
		{"submitted", service.ErrNotEditable, http.StatusConflict, service.CodeNotEditable},
		{"auth", &backend.Error{Kind: backend.KindAuth, Message: backend.MsgAuth}, http.StatusUnauthorized, service.CodeAuth},
		{"network", &backend.Error{Kind: backend.KindTransport, Message: backend.MsgNetwork}, http.StatusBadGateway, service.CodeUnavailable},
		{"upstream", &backend.Error{Kind: backend.KindApplication, Message: backend.MsgTaskUnavailable}, http.StatusConflict, service.CodeUpstream},
		{"drafts", service.ErrDraftsDisabled, http.StatusNotImplemented, service.CodeDrafts},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, Dependencies{Sessions: &fakeSessions{err: tc.err}})
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/sess-1/commands", `{"op":"next"}`)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, body["code"])
			assert.Equal(t, tc.err.Error(), body["message"])
		})
	}
}

func TestValidationErrorCarriesField(t *testing.T) {
	srv := newServer(t, Dependencies{Sessions: &fakeSessions{
		err: &model.ValidationError{Step: 1, Field: "before_photo", Message: "Photo Required. Please add a photograph before starting work."},
	}})
	_, body := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/sess-1/commands", `{"op":"next"}`)
	assert.Equal(t, "before_photo", body["field"])
	assert.Equal(t, float64(1), body["step"])
}

func TestExecuteCommandPassesData(t *testing.T) {
	sessions := &fakeSessions{}
	srv := newServer(t, Dependencies{Sessions: sessions})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/sess-1/commands", `{"op":"toggle","data":{"question":"q_2","option":"B"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, service.OpToggle, sessions.lastCmd.Op)
	assert.JSONEq(t, `{"question":"q_2","option":"B"}`, string(sessions.lastCmd.Data))

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/sess-1/commands", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCloseSession(t *testing.T) {
	srv := newServer(t, Dependencies{Sessions: &fakeSessions{}})
	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/v1/sessions/sess-1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/sessions/other", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDraftEndpoints(t *testing.T) {
	srv := newServer(t, Dependencies{Sessions: &fakeSessions{}})
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/sess-1/draft", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, service.CodeNoDraft, body["code"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/sess-1/draft", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadFile(t *testing.T) {
	sessions := &fakeSessions{}
	srv := newServer(t, Dependencies{Sessions: sessions})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "leak.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/v1/sessions/sess-1/files?slot=before_photo", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, upload{"sess-1", "before_photo", "leak.jpg", "image/jpeg", "jpeg-bytes"}, sessions.upload)

	resp, err = http.Post(srv.URL+"/v1/sessions/sess-1/files", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadFile_BodyLimit(t *testing.T) {
	srv := newServer(t, Dependencies{Sessions: &fakeSessions{}, MaxUploadBytes: 512})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "big.png")
	_, _ = part.Write(bytes.Repeat([]byte("a"), 4096))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/v1/sessions/sess-1/files?slot=after_photo", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestPreviewFile(t *testing.T) {
	sessions := &fakeSessions{files: map[string]string{"sessions/sess-1/before_photo-01.jpg": "img"}}
	srv := newServer(t, Dependencies{Sessions: sessions})

	resp, err := http.Get(srv.URL + "/v1/files/sessions/sess-1/before_photo-01.jpg?token=good")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "img", string(b))
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	resp, err = http.Get(srv.URL + "/v1/files/sessions/sess-1/before_photo-01.jpg?token=bad")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// a token for one object does not open another
	resp, err = http.Get(srv.URL + "/v1/files/sessions/sess-1/after_photo-02.jpg?token=good")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestListLocations(t *testing.T) {
	sessions := &fakeSessions{options: []location.Option{{ID: "7", Name: "Tower A"}}}
	srv := newServer(t, Dependencies{Sessions: sessions})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/locations/buildings", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "building", body["level"])
	assert.Len(t, body["options"], 1)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/locations/wings", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	sessions.options = nil
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/locations/wing?parent=7", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, location.Wing, sessions.optLevel)
	assert.Equal(t, []interface{}{}, body["options"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/locations/basement", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReportStatus(t *testing.T) {
	reports := &fakeReports{}
	srv := newServer(t, Dependencies{Sessions: &fakeSessions{}, Reports: reports})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/reports/12/88", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "under_review", body["status"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/reports/12/88/status", `{"status":"resolved"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "resolved", body["status"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/reports/12/88/status", `{"status":"bogus"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "status", body["field"])

	reports.err = &backend.Error{Kind: backend.KindTransport, Message: backend.MsgNetwork}
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/reports/12/88/status", `{"status":"resolved"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	report := body["report"].(map[string]interface{})
	assert.Equal(t, "under_review", report["status"])
}

func TestSubmissions(t *testing.T) {
	srv := newServer(t, Dependencies{Sessions: &fakeSessions{}})
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/submissions", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	subs := &fakeSubmissions{}
	srv = newServer(t, Dependencies{Sessions: &fakeSessions{}, Submissions: subs})
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/submissions?kind=task&record=9001&limit=5", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, db.ListSubmissionsParams{RecordKind: "task", RecordID: "9001", Limit: 5}, subs.params)
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "sub-1", items[0].(map[string]interface{})["id"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/submissions/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/submissions/sub-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSameOrigin(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://console.local/v1/ws", nil)
	assert.True(t, sameOrigin(r))
	r.Header.Set("Origin", "http://console.local")
	assert.True(t, sameOrigin(r))
	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, sameOrigin(r))
}
