// Package remote exposes the playback session over a small JSON API so other
// devices can drive the player.
package remote

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"go.uber.org/zap"

	"karolbroda.com/encore/internal/queue"
	"karolbroda.com/encore/internal/session"
	"karolbroda.com/encore/internal/track"
)

// Player is the session surface the API drives. session.Controller
// satisfies it.
type Player interface {
	Snapshot() session.Snapshot
	LoadSong(song track.Song) error
	Enqueue(song track.Song) error
	RemoveFromQueue(index int) (track.Song, error)
	Next(isUserAction bool) error
	TogglePlay() error
	Seek(fraction float64) error
	Restart() error
	ToggleLikeCurrent() (bool, error)
	SetVolume(volume float64) (float64, error)
}

type stateResponse struct {
	Song       *track.Song  `json:"song"`
	State      string       `json:"state"`
	Position   float64      `json:"position"`
	Duration   float64      `json:"duration"`
	Liked      bool         `json:"liked"`
	ActiveLine int          `json:"active_line"`
	Lyrics     string       `json:"lyrics"`
	Queue      []track.Song `json:"queue"`
	Volume     float64      `json:"volume"`
}

type seekRequest struct {
	Fraction *float64 `json:"fraction"`
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
}

type Server struct {
	echo   *echo.Echo
	player Player
	logger *zap.Logger
}

func NewServer(player Player, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		echo:   echo.New(),
		player: player,
		logger: logger,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger)

	api := s.echo.Group("/api")
	api.GET("/health", s.health)
	api.GET("/state", s.state)
	api.GET("/queue", s.getQueue)
	api.POST("/queue", s.enqueue)
	api.DELETE("/queue/:index", s.removeFromQueue)
	api.POST("/play", s.play)
	api.POST("/next", s.next)
	api.POST("/toggle", s.toggle)
	api.POST("/seek", s.seek)
	api.POST("/restart", s.restart)
	api.POST("/like", s.like)
	api.PUT("/volume", s.volume)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("Remote control listening", zap.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		requestID := uuid.NewString()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Debug("Remote request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)))
		return nil
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) state(c echo.Context) error {
	snap := s.player.Snapshot()
	return c.JSON(http.StatusOK, stateResponse{
		Song:       snap.Song,
		State:      snap.State.String(),
		Position:   snap.Position,
		Duration:   snap.Duration,
		Liked:      snap.Liked,
		ActiveLine: snap.ActiveLine,
		Lyrics:     snap.LyricsKind.String(),
		Queue:      snap.Queue,
		Volume:     snap.Volume,
	})
}

func (s *Server) getQueue(c echo.Context) error {
	return c.JSON(http.StatusOK, s.player.Snapshot().Queue)
}

func (s *Server) bindSong(c echo.Context) (track.Song, error) {
	var song track.Song
	if err := c.Bind(&song); err != nil {
		return track.Song{}, echo.NewHTTPError(http.StatusBadRequest, "invalid song body")
	}
	if !song.IsValid() {
		return track.Song{}, echo.NewHTTPError(http.StatusBadRequest, "song needs id, title and artist")
	}
	return song, nil
}

func (s *Server) enqueue(c echo.Context) error {
	song, err := s.bindSong(c)
	if err != nil {
		return err
	}
	if err := s.player.Enqueue(song); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, s.player.Snapshot().Queue)
}

func (s *Server) removeFromQueue(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be a number")
	}

	removed, err := s.player.RemoveFromQueue(index)
	if errors.Is(err, queue.ErrIndexOutOfRange) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, removed)
}

func (s *Server) play(c echo.Context) error {
	song, err := s.bindSong(c)
	if err != nil {
		return err
	}
	if err := s.player.LoadSong(song); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) next(c echo.Context) error {
	if err := s.player.Next(true); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) toggle(c echo.Context) error {
	if err := s.player.TogglePlay(); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"state": s.player.Snapshot().State.String()})
}

func (s *Server) seek(c echo.Context) error {
	var req seekRequest
	if err := c.Bind(&req); err != nil || req.Fraction == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "fraction is required")
	}
	if err := s.player.Seek(*req.Fraction); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) restart(c echo.Context) error {
	if err := s.player.Restart(); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) like(c echo.Context) error {
	liked, err := s.player.ToggleLikeCurrent()
	switch {
	case errors.Is(err, session.ErrNoSong):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrLikesUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"liked": liked})
}

// volume sets the player volume, clamped to [0, 1], and answers with the
// applied value.
func (s *Server) volume(c echo.Context) error {
	var req volumeRequest
	if err := c.Bind(&req); err != nil || req.Volume == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "volume is required")
	}
	applied, err := s.player.SetVolume(*req.Volume)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]float64{"volume": applied})
}
