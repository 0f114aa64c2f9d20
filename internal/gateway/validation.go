package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/go-playground/validator/v10"
)

type UserCreate struct {
	Name  string `json:"name" validate:"notblank"`
	Email string `json:"email" validate:"required,email"`
}

type UserPatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email" validate:"omitempty,email"`
}

type ItemCreate struct {
	Name        string `json:"name" validate:"notblank"`
	Description string `json:"description" validate:"notblank"`
	Available   *bool  `json:"available" validate:"required"`
	RequestID   *int64 `json:"requestId"`
}

type ItemPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Available   *bool   `json:"available"`
}

type CommentCreate struct {
	Text string `json:"text" validate:"notblank"`
}

type RequestCreate struct {
	Description string `json:"description" validate:"notblank"`
}

type BookingCreate struct {
	ItemID *int64     `json:"itemId" validate:"required"`
	Start  *time.Time `json:"start" validate:"required,future"`
	End    *time.Time `json:"end" validate:"required,future"`
}

// Check enforces the ordering of the booking interval.
func (b *BookingCreate) Check() error {
	if !b.Start.Before(*b.End) {
		return domain.Validationf("end must be after start")
	}
	return nil
}

// Page is a from/size listing window.
type Page struct {
	From int `json:"from" validate:"min=0"`
	Size int `json:"size" validate:"min=1,max=10000"`
}

// Validator checks gateway DTOs before they are forwarded.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      now,
	}

	v.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// регистрация не падает для непустых тегов
	_ = v.validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.validate.RegisterValidation("future", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && t.After(v.now())
	})

	return v
}

// Struct validates dto and turns the first failures into a BadRequest error.
func (v *Validator) Struct(dto any) error {
	err := v.validate.Struct(dto)
	if err == nil {
		if checker, ok := dto.(interface{ Check() error }); ok {
			return checker.Check()
		}
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.Validationf("invalid request: %v", err)
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describe(fe))
	}
	return domain.Validationf("%s", strings.Join(messages, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "future":
		return fmt.Sprintf("%s must be in the future", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// check inspects a request before it is proxied.
type check func(r *http.Request, body []byte) error

// bodyOf decodes the body into T and validates it.
func bodyOf[T any](v *Validator) check {
	return func(_ *http.Request, body []byte) error {
		if len(strings.TrimSpace(string(body))) == 0 {
			return domain.Validationf("request body is required")
		}
		var dto T
		if err := json.Unmarshal(body, &dto); err != nil {
			return domain.Validationf("invalid JSON body: %v", err)
		}
		return v.Struct(&dto)
	}
}

func requireUser(r *http.Request, _ []byte) error {
	raw := strings.TrimSpace(r.Header.Get(models.UserIDHeader))
	if raw == "" {
		return domain.Validationf("header %s is required", models.UserIDHeader)
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		return domain.Validationf("header %s must be a number", models.UserIDHeader)
	}
	return nil
}

func requirePathID(r *http.Request, _ []byte) error {
	if _, err := strconv.ParseInt(r.PathValue("id"), 10, 64); err != nil {
		return domain.Validationf("invalid id %q", r.PathValue("id"))
	}
	return nil
}

func requireState(r *http.Request, _ []byte) error {
	raw := r.URL.Query().Get("state")
	if _, ok := models.ParseBookingState(raw); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownState, raw)
	}
	return nil
}

func requireApproved(r *http.Request, _ []byte) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("approved"))); err != nil {
		return domain.Validationf("approved must be true or false")
	}
	return nil
}

// pageOf validates the from/size query pair; missing values take the defaults.
func pageOf(v *Validator) check {
	return func(r *http.Request, _ []byte) error {
		page := Page{From: models.DefaultFrom, Size: models.DefaultPageSize}
		query := r.URL.Query()
		fields := []struct {
			name string
			dst  *int
		}{{"from", &page.From}, {"size", &page.Size}}
		for _, f := range fields {
			name, dst := f.name, f.dst
			raw := strings.TrimSpace(query.Get(name))
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				return domain.Validationf("%s must be an integer", name)
			}
			*dst = n
		}
		return v.Struct(&page)
	}
}
