package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const maxBodyBytes = 1 << 20

// errorResponse — тело ответа с ошибкой.
type errorResponse struct {
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, errorResponse{Detail: detail})
}

// statusFor сопоставляет класс доменной ошибки со статус-кодом.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnprocessableReference),
		errors.Is(err, domain.ErrConflict):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail пишет ответ для ошибки операции. Текст внутренних ошибок наружу не уходит.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode читает JSON-тело и проверяет его тегами validate.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validationf("request body is required")
		}
		return domain.Validationf("malformed JSON body: %v", err)
	}
	if dec.More() {
		return domain.Validationf("request body must contain a single JSON object")
	}

	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return domain.Validationf("%v", err)
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
	switch fe.Tag() {
	case "required":
		return domain.Validationf("%s is required", field)
	case "email":
		return domain.Validationf("%s must be a valid email address", field)
	case "gt":
		return domain.Validationf("%s must be greater than %s", field, fe.Param())
	case "min":
		return domain.Validationf("%s must contain at least %s element(s)", field, fe.Param())
	default:
		return domain.Validationf("%s failed on %s", field, fe.Tag())
	}
}

// pathID разбирает положительный идентификатор из пути.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validationf("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

// pageFromQuery читает skip/limit; отсутствующие параметры берутся по умолчанию.
func pageFromQuery(r *http.Request) (domain.Page, error) {
	page := domain.DefaultPage()
	query := r.URL.Query()

	parse := func(name string, dst *int) error {
		raw := query.Get(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Validationf("%s must be an integer, got %q", name, raw)
		}
		*dst = v
		return nil
	}
	if err := parse("skip", &page.Skip); err != nil {
		return domain.Page{}, err
	}
	if err := parse("limit", &page.Limit); err != nil {
		return domain.Page{}, err
	}
	return domain.NewPage(page.Skip, page.Limit)
}

func mapSlice[S, D any](src []S, fn func(S) D) []D {
	out := make([]D, 0, len(src))
	for _, v := range src {
		out = append(out, fn(v))
	}
	return out
}

// describe используется в логах восстановления после паники.
func describe(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
