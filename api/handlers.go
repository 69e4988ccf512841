package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"

	"school-planner/domain"
)

// maxStateBytes caps PUT bodies. The whole document travels on every write,
// so anything past this is a runaway client, not a big semester.
const maxStateBytes = 2 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, feed ChangeFeed, apiKey string, logger *log.Logger) {
	guarded := e.Group("/api", RequireAPIKey(apiKey))
	guarded.GET("/state", getState(store, logger))
	guarded.PUT("/state", putState(store, feed, logger))
	e.GET("/healthz", healthz(store))
}

type saveResponse struct {
	OK        bool   `json:"ok"`
	UpdatedAt string `json:"updated_at"`
}

func getState(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newStateRequestMetrics(ctx, "/api/state", http.MethodGet, logger)
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		loadStart := time.Now()
		raw, loadErr := store.LoadRaw(ctx)
		metrics.ObserveLoad(time.Since(loadStart))
		if loadErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(loadErr)
			err = c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not load state"})
			return err
		}
		metrics.SetBytesOut(len(raw))

		encodeStart := time.Now()
		err = c.JSONBlob(http.StatusOK, raw)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func putState(store Storage, feed ChangeFeed, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newStateRequestMetrics(ctx, "/api/state", http.MethodPut, logger)
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		body, readErr := io.ReadAll(io.LimitReader(c.Request().Body, maxStateBytes+1))
		if readErr != nil {
			metrics.SetErrorStage("read_body")
			err = c.JSON(http.StatusBadRequest, map[string]string{"error": "could not read body"})
			return err
		}
		if len(body) > maxStateBytes {
			metrics.SetErrorStage("body_too_large")
			err = c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "state too large"})
			return err
		}
		metrics.SetBytesIn(len(body))

		parseStart := time.Now()
		doc, parseErr := domain.ParseDocument(body)
		metrics.ObserveParse(time.Since(parseStart))
		if parseErr != nil {
			var perr *domain.ParseError
			if errors.As(parseErr, &perr) {
				metrics.SetErrorStage("invalid_json")
				err = c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
				return err
			}
			metrics.SetErrorStage("parse")
			err = c.JSON(http.StatusBadRequest, map[string]string{"error": parseErr.Error()})
			return err
		}

		saveStart := time.Now()
		updatedAt, saveErr := store.SaveDocument(ctx, doc)
		metrics.ObserveSave(time.Since(saveStart))
		if saveErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(saveErr)
			err = c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not save state"})
			return err
		}

		if feed != nil {
			if pubErr := feed.Publish(ctx, doc, updatedAt); pubErr != nil {
				logger.WithError(pubErr).Warn("change feed publish failed")
			}
		}

		err = c.JSON(http.StatusOK, saveResponse{
			OK:        true,
			UpdatedAt: updatedAt.Format(time.RFC3339Nano),
		})
		return err
	}
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
