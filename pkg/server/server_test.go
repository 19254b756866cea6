package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/nzoschke/musicagent/pkg/analysis"
	"github.com/nzoschke/musicagent/pkg/audio"
	"github.com/nzoschke/musicagent/pkg/classify"
	"github.com/nzoschke/musicagent/pkg/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toneWAV(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, audio.WriteWAV(path, audio.Tone(440, 0.6, 1, 8000), 8000))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	s := New(Config{MusicDir: dir, BodyLimit: "1M"}, analysis.Options{
		Corpus: corpus.Corpus{{Song: "Ref", Tempo: 120, Energy: 0.5, Danceability: 0.5, Valence: 0.5, Acousticness: 0.5, Loudness: -10}},
	})
	return s, dir
}

func upload(t *testing.T, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analysis", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAnalyze(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, upload(t, "file", "tone.wav", "audio/wav", toneWAV(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res analysis.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "tone.wav", res.File)
	assert.True(t, res.Genre.Valid())
	assert.Len(t, res.Similar, 1)
	assert.Len(t, res.MoodProfile, 4)
}

func TestAnalyzeUntypedWAV(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, upload(t, "file", "tone.wav", "application/octet-stream", toneWAV(t)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzeErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		req  *http.Request
		code int
	}{
		{"missing file", upload(t, "other", "tone.wav", "audio/wav", []byte("x")), http.StatusBadRequest},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/analysis", nil), http.StatusBadRequest},
		{"not audio", upload(t, "file", "notes.txt", "text/plain", []byte("hello")), http.StatusUnsupportedMediaType},
		{"unknown ext", upload(t, "file", "notes.txt", "", []byte("hello")), http.StatusUnsupportedMediaType},
		{"undecodable", upload(t, "file", "junk.mp3", "audio/mpeg", []byte("not really audio")), http.StatusUnprocessableEntity},
		{"too large", upload(t, "file", "big.wav", "audio/wav", make([]byte, 2<<20)), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestListGenres(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/genres", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var profiles []classify.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profiles))
	require.Len(t, profiles, len(classify.Genres))
	assert.Equal(t, classify.Electronic, profiles[0].Genre)
	assert.Equal(t, 115.0, profiles[0].Tempo.Min)
}

func TestMusic(t *testing.T) {
	s, dir := newTestServer(t)
	wav := toneWAV(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "album"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), wav, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"genre":"Pop"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "album", "b.wav"), wav, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/music", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var tracks []Track
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tracks))
	assert.Equal(t, []Track{
		{Name: "a", Path: "a.wav", HasJSON: true, JSONPath: "a.json"},
		{Name: "b", Path: "album/b.wav"},
	}, tracks)

	tests := []struct {
		path string
		code int
	}{
		{"/api/music/a.wav", http.StatusOK},
		{"/api/music/album/b.wav", http.StatusOK},
		{"/api/music/a.json", http.StatusOK},
		{"/api/music/broken.json", http.StatusInternalServerError},
		{"/api/music/missing.wav", http.StatusNotFound},
		{"/api/music/notes.txt", http.StatusForbidden},
		{"/api/music/album", http.StatusForbidden},
		{"/api/music/..%2F..%2Fetc%2Fpasswd", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/music/a.json", nil))
	assert.JSONEq(t, `{"genre":"Pop"}`, rec.Body.String())
}

func TestListMusicMissingDir(t *testing.T) {
	s := New(Config{MusicDir: filepath.Join(t.TempDir(), "nope")}, analysis.Options{})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/music", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
