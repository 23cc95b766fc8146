package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"
)

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone: ответ 2xx сохранён и повторяется.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed: сохранён ответ с ошибкой, повтор возвращает его же.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// CompletionStatus выбирает итоговый статус ключа по коду ответа.
func CompletionStatus(httpStatus int) IdempotencyStatus {
	if httpStatus >= 200 && httpStatus < 300 {
		return IdempotencyStatusDone
	}
	return IdempotencyStatusFailed
}

// RequestFingerprint связывает ключ с конкретным запросом: метод, путь и тело.
func RequestFingerprint(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{'\n'})
	sum.Write([]byte(path))
	sum.Write([]byte{'\n'})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

// IdempotencyRecord хранит сохранённый ответ POST-запроса под Idempotency-Key.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Replayable сообщает, что обработка завершена и ответ можно повторить.
func (r IdempotencyRecord) Replayable() bool {
	return r.Status == IdempotencyStatusDone || r.Status == IdempotencyStatusFailed
}

// ReplayStatus возвращает код сохранённого ответа; битый код заменяется на 500.
func (r IdempotencyRecord) ReplayStatus() int {
	if r.HTTPStatus < 100 || r.HTTPStatus > 599 {
		return http.StatusInternalServerError
	}
	return r.HTTPStatus
}

// Expired сообщает, что ключ пережил TTL и подлежит очистке.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.IsZero() && !now.Before(r.TTLAt)
}
