package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/Vampire/setup-wsl-sub000/internal/cache"
)

type cacheHandler struct {
	store   cache.Store
	logger  *logrus.Logger
	metrics *Metrics
}

func (h *cacheHandler) locator(c fiber.Ctx) (cache.Locator, error) {
	key, err := url.PathUnescape(c.Params("key"))
	if err != nil || key == "" {
		return cache.Locator{}, fiber.NewError(fiber.StatusBadRequest, "invalid cache key")
	}
	return cache.Locator{Namespace: Namespace, Key: key}, nil
}

func (h *cacheHandler) get(c fiber.Ctx) error {
	started := time.Now()
	locator, err := h.locator(c)
	if err != nil {
		return renderError(c, err)
	}

	result, err := h.store.Get(c.Context(), locator)
	if errors.Is(err, cache.ErrNotFound) {
		h.metrics.Lookups.WithLabelValues("miss").Inc()
		h.logResult(c, locator, fiber.StatusNotFound, false, started, nil)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cache_miss"})
	}
	if err != nil {
		h.logResult(c, locator, fiber.StatusInternalServerError, false, started, err)
		return renderError(c, fmt.Errorf("read cache: %w", err))
	}
	h.metrics.Lookups.WithLabelValues("hit").Inc()

	c.Set("ETag", result.Entry.ETag())
	c.Set("Last-Modified", result.Entry.ModTime.UTC().Format(http.TimeFormat))
	if match := c.Get("If-None-Match"); match != "" && match == result.Entry.ETag() {
		result.Reader.Close()
		h.logResult(c, locator, fiber.StatusNotModified, true, started, nil)
		return c.SendStatus(fiber.StatusNotModified)
	}

	c.Set("Content-Type", "application/x-gtar")
	c.Response().Header.SetContentLength(int(result.Entry.SizeBytes))
	c.Status(fiber.StatusOK)

	if c.Method() == http.MethodHead {
		result.Reader.Close()
		h.logResult(c, locator, fiber.StatusOK, true, started, nil)
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), result.Reader)
	result.Reader.Close()
	h.logResult(c, locator, fiber.StatusOK, true, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read cache failed: %v", err))
	}
	return nil
}

func (h *cacheHandler) put(c fiber.Ctx) error {
	started := time.Now()
	locator, err := h.locator(c)
	if err != nil {
		return renderError(c, err)
	}

	body := c.Body()
	if len(body) == 0 {
		return renderError(c, fiber.NewError(fiber.StatusBadRequest, "empty body"))
	}

	entry, err := h.store.Put(c.Context(), locator, bytes.NewReader(body), cache.PutOptions{})
	if err != nil {
		h.logResult(c, locator, fiber.StatusInternalServerError, false, started, err)
		return renderError(c, fmt.Errorf("write cache: %w", err))
	}
	h.metrics.Stores.Inc()
	h.metrics.Bytes.Add(float64(entry.SizeBytes))
	h.logResult(c, locator, fiber.StatusCreated, false, started, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"key":        locator.Key,
		"size_bytes": entry.SizeBytes,
		"sha256":     entry.Digest,
	})
}

// remove 删除条目，条目不存在时同样返回 204。
func (h *cacheHandler) remove(c fiber.Ctx) error {
	started := time.Now()
	locator, err := h.locator(c)
	if err != nil {
		return renderError(c, err)
	}
	if err := h.store.Remove(c.Context(), locator); err != nil {
		h.logResult(c, locator, fiber.StatusInternalServerError, false, started, err)
		return renderError(c, fmt.Errorf("remove cache: %w", err))
	}
	h.metrics.Removals.Inc()
	h.logResult(c, locator, fiber.StatusNoContent, false, started, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *cacheHandler) logResult(c fiber.Ctx, locator cache.Locator, status int, hit bool, started time.Time, err error) {
	fields := logrus.Fields{
		"action":     "content_cache",
		"method":     c.Method(),
		"key":        locator.Key,
		"status":     status,
		"cache_hit":  hit,
		"request_id": RequestID(c),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}
	if err != nil {
		h.logger.WithFields(fields).WithError(err).Error("content cache request failed")
		return
	}
	h.logger.WithFields(fields).Debug("content cache request")
}

func renderError(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
