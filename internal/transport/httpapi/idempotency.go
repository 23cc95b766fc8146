package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	idempotencyKeyHeader    = "Idempotency-Key"
	idempotentReplayHeader  = "Idempotent-Replayed"
	maxIdempotencyKeyLength = 255
)

// idempotent сохраняет ответ POST-запроса под Idempotency-Key и повторяет его для того же тела.
// Тот же ключ с другим телом даёт 422, ключ запроса в обработке даёт 409.
func (h *handler) idempotent(next http.Handler) http.Handler {
	if h.idempotency == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			respondError(w, http.StatusUnprocessableEntity, "idempotency key is too long")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "request body is too large or unreadable")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		hash := domain.RequestFingerprint(r.Method, r.URL.Path, body)
		logger := h.logger.WithFields(log.Fields{
			"idempotency_key": key,
			"request_id":      middleware.GetReqID(r.Context()),
		})

		record, err := h.idempotency.CreateProcessing(r.Context(), key, hash, time.Now().UTC().Add(h.idempotencyTTL))
		if err != nil {
			h.replay(w, logger, record, err)
			return
		}

		var captured bytes.Buffer
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&captured)

		// Запись ответа не должна зависеть от отмены запроса.
		storeCtx := context.WithoutCancel(r.Context())
		completed := false
		defer func() {
			if completed {
				return
			}
			if err := h.idempotency.MarkFailed(storeCtx, key, nil, http.StatusInternalServerError); err != nil {
				logger.WithError(err).Warn("failed to release idempotency key after panic")
			}
		}()

		next.ServeHTTP(ww, r)
		completed = true

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		store := h.idempotency.MarkFailed
		if domain.CompletionStatus(status) == domain.IdempotencyStatusDone {
			store = h.idempotency.MarkDone
		}
		if err := store(storeCtx, key, captured.Bytes(), status); err != nil {
			logger.WithError(err).Warn("failed to store idempotent response")
		}
	})
}

func (h *handler) replay(w http.ResponseWriter, logger *log.Entry, record domain.IdempotencyRecord, err error) {
	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		respondError(w, http.StatusUnprocessableEntity, "idempotency key is already used with a different request payload")
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		switch {
		case record.Status == domain.IdempotencyStatusProcessing:
			respondError(w, http.StatusConflict, "request with the same idempotency key is still processing")
		case record.Replayable():
			w.Header().Set(idempotentReplayHeader, "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(record.ReplayStatus())
			_, _ = w.Write(record.ResponseBody)
		default:
			logger.WithField("status", record.Status).Error("unknown idempotency record status")
			respondError(w, http.StatusInternalServerError, "internal server error")
		}
	default:
		logger.WithError(err).Error("failed to create idempotency record")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
