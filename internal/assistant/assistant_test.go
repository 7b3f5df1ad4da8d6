package assistant

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smartassist/pkg/client"
	apperrors "smartassist/pkg/errors"
	"smartassist/pkg/logger"
	"smartassist/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePDF = "%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n"

type upstream struct {
	chatStatus int
	chatBody   string

	lastChat     model.ChatRequest
	lastFilename string
	lastContent  string
}

func (u *upstream) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&u.lastChat))
		status := u.chatStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, u.chatBody)
	})
	mux.HandleFunc("/documents", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			http.Error(w, "bad upload", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		u.lastFilename = header.Filename
		u.lastContent = string(data)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"indexed","filename":"`+header.Filename+`"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(baseURL string, maxUpload int64) *httprouter.Router {
	log := logger.Discard()
	gw := NewGateway(client.NewHttpClient(baseURL, 2*time.Second), log)
	router := httprouter.New()
	NewHandler(gw, maxUpload, log).RegisterRoutes(router)
	return router
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func postFile(t *testing.T, router http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, DocumentsPath, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChat_RelaysAnswer(t *testing.T) {
	up := &upstream{chatBody: `{"type":"answer","content":"The library opens at 8 AM.","source":"handbook.pdf"}`}
	router := newTestRouter(up.server(t).URL, 1<<20)

	rec := postJSON(router, "/chat", `{"message":"  When does the library open? ","user_id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply model.ChatReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, model.ReplyAnswer, reply.Type)
	assert.Equal(t, "handbook.pdf", reply.Source)
	assert.Equal(t, "When does the library open?", up.lastChat.Message)
	assert.Equal(t, "s1", up.lastChat.UserID)
}

func TestChat_RelaysBookingProposal(t *testing.T) {
	up := &upstream{chatBody: `{"type":"booking","content":"Here is a slot.","booking":{"resource":"Meeting Room B","date":"2026-02-26","time":"2:00 PM","duration":"2 hours"}}`}
	router := newTestRouter(up.server(t).URL, 1<<20)

	rec := postJSON(router, "/chat", `{"message":"book meeting room b tomorrow"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply model.ChatReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.NotNil(t, reply.Booking)
	assert.Equal(t, "Meeting Room B", reply.Booking.Resource)
	assert.Equal(t, model.DefaultChatUserID, up.lastChat.UserID)
}

func TestChat_Errors(t *testing.T) {
	up := &upstream{chatStatus: http.StatusBadGateway, chatBody: `{"detail":"model offline"}`}
	router := newTestRouter(up.server(t).URL, 1<<20)

	rec := postJSON(router, "/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(router, "/chat", `{bad json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(router, "/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.CodeUnavailable)

	up.chatStatus = http.StatusUnprocessableEntity
	rec = postJSON(router, "/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "model offline")
}

func TestChat_NotConfigured(t *testing.T) {
	router := newTestRouter("", 1<<20)

	rec := postJSON(router, "/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = postFile(t, router, "notes.pdf", samplePDF)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChat_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := postJSON(newTestRouter(url, 1<<20), "/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUploadDocument(t *testing.T) {
	up := &upstream{}
	router := newTestRouter(up.server(t).URL, 1<<20)

	rec := postFile(t, router, "Timetable.PDF", samplePDF)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.DocumentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, model.DocumentIndexed, result.Status)
	assert.Equal(t, "Timetable.PDF", result.Filename)
	assert.Equal(t, samplePDF, up.lastContent, "the sniffed header must be forwarded too")
}

func TestUploadDocument_Rejections(t *testing.T) {
	up := &upstream{}
	router := newTestRouter(up.server(t).URL, 256)

	rec := postFile(t, router, "notes.txt", "plain text")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postFile(t, router, "fake.pdf", "not really a pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postFile(t, router, "big.pdf", samplePDF+strings.Repeat("x", 4096))
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, rec.Code)

	rec = postJSON(router, DocumentsPath, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, up.lastFilename)
}
