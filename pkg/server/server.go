// Package server provides the Echo web server for uploading tracks and
// browsing analysed music.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nzoschke/musicagent/pkg/analysis"
	"github.com/nzoschke/musicagent/pkg/audio"
	"github.com/nzoschke/musicagent/pkg/classify"
	"github.com/nzoschke/musicagent/pkg/logging"
	"github.com/sirupsen/logrus"
)

// Config contains the HTTP settings.
type Config struct {
	Addr      string
	MusicDir  string
	BodyLimit string // echo size syntax, e.g. "64M"
}

// Track represents a track in the music library.
type Track struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	HasJSON  bool   `json:"has_json"`
	JSONPath string `json:"json_path,omitempty"`
}

// Server serves the analysis API.
type Server struct {
	echo  *echo.Echo
	cfg   Config
	agent analysis.Options
	log   *logrus.Entry
}

// New builds the server. Every upload runs on its own Agent built from
// agent, so the corpus and model are the only shared state.
func New(cfg Config, agent analysis.Options) *Server {
	s := &Server{
		echo:  echo.New(),
		cfg:   cfg,
		agent: agent,
		log:   logging.Zone("server"),
	}
	e := s.echo
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	// Routes
	e.POST("/api/analysis", s.analyze)
	e.GET("/api/genres", listGenres)
	e.GET("/api/music", s.listMusic)
	e.GET("/api/music/*", s.serveMusic)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address.
func (s *Server) Start() error {
	s.log.WithField("addr", s.cfg.Addr).Info("listening")
	err := s.echo.Start(s.cfg.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// analyze runs an uploaded multipart "file" through a fresh agent.
func (s *Server) analyze(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file")
	}
	if !isAudioUpload(fh) {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "file must be audio")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	log := s.log.WithField("file", fh.Filename)
	agent := analysis.New(s.agent)
	res, err := agent.Run(c.Request().Context(), fh.Filename, data, func(st analysis.State) {
		log.WithField("state", st).Debug(analysis.StateMessage(st))
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

// isAudioUpload accepts audio/* parts and untyped parts with a supported
// extension.
func isAudioUpload(fh *multipart.FileHeader) bool {
	ct := strings.ToLower(fh.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(ct, "audio/"):
		return true
	case ct == "" || ct == "application/octet-stream":
		return audio.IsAudioPath(fh.Filename)
	default:
		return false
	}
}

// listGenres returns the genre profiles in canonical order.
func listGenres(c echo.Context) error {
	return c.JSON(http.StatusOK, classify.Profiles())
}

// listMusic returns a list of all tracks in the music directory.
func (s *Server) listMusic(c echo.Context) error {
	tracks := []Track{}
	root := s.cfg.MusicDir

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !audio.IsAudioPath(path) {
			return nil
		}

		// Paths are relative to the music dir in URL form
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		ext := filepath.Ext(path)
		track := Track{
			Name: strings.TrimSuffix(filepath.Base(path), ext),
			Path: filepath.ToSlash(rel),
		}

		// Check if JSON sidecar exists
		if _, err := os.Stat(analysis.SidecarPath(path)); err == nil {
			track.HasJSON = true
			track.JSONPath = filepath.ToSlash(analysis.SidecarPath(rel))
		}

		tracks = append(tracks, track)
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, tracks)
}

// serveMusic serves audio files and JSON analysis files from the music directory.
func (s *Server) serveMusic(c echo.Context) error {
	decodedPath, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid path encoding")
	}

	// Prevent directory traversal
	if strings.Contains(decodedPath, "..") {
		return echo.NewHTTPError(http.StatusForbidden, "invalid path")
	}
	fullPath := filepath.Join(s.cfg.MusicDir, filepath.FromSlash(decodedPath))

	info, err := os.Stat(fullPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if info.IsDir() {
		return echo.NewHTTPError(http.StatusForbidden, "cannot serve directory")
	}

	// Only serve allowed file types
	if audio.IsAudioPath(decodedPath) {
		return c.File(fullPath)
	}
	if strings.ToLower(filepath.Ext(decodedPath)) == ".json" {
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		var result map[string]any
		if err := json.Unmarshal(data, &result); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "invalid JSON")
		}
		return c.JSON(http.StatusOK, result)
	}
	return echo.NewHTTPError(http.StatusForbidden, "file type not allowed")
}
