// Package validators holds the request validation shared by the
// per-area validator middlewares.
package validators

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"courseportal/middleware"
	"courseportal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by the name the client sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := utils.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// Struct validates v and returns one message per failing field, nil when
// v is valid.
func Struct(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"request": err.Error()}
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required!", fe.Field())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long!", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s!", fe.Field(), fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long!", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s!", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s!", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return "Invalid email!"
	case "uuid":
		return fmt.Sprintf("%s must be a valid id!", fe.Field())
	case "date":
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD)!", fe.Field())
	}
	return fmt.Sprintf("%s is invalid!", fe.Field())
}

// Body parses the JSON body into T and validates it. On failure the error
// response has already been written and ok is false.
func Body[T any](c *fiber.Ctx) (req *T, ok bool, err error) {
	req = new(T)
	if err := c.BodyParser(req); err != nil {
		return nil, false, middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
	}
	if errs := Struct(req); errs != nil {
		return nil, false, middleware.ValidationErrorResponse(c, errs)
	}
	return req, true, nil
}

// Query is Body for the query string.
func Query[T any](c *fiber.Ctx) (req *T, ok bool, err error) {
	req = new(T)
	if err := c.QueryParser(req); err != nil {
		return nil, false, middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
	}
	if errs := Struct(req); errs != nil {
		return nil, false, middleware.ValidationErrorResponse(c, errs)
	}
	return req, true, nil
}

// PageQuery is embedded by every list query.
type PageQuery struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

func (q PageQuery) ToPage() utils.Page {
	return utils.Page{Page: q.Page, Size: q.Limit}.Normalize()
}

// OptionalDate parses s, nil when empty. Callers validate s with the
// "date" tag first.
func OptionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := utils.ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}
