package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fitbook/fitbook-server/cmd/models"
)

// validate checks request payload shape before domain rules run. Field names
// in errors come from json tags so they match the wire format.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// National phone format: +7 or 8 followed by ten digits.
	v.RegisterValidation("ruphone", func(fl validator.FieldLevel) bool {
		return models.PhonePattern.MatchString(fl.Field().String())
	})

	return v
}

// Struct validates a payload struct and translates failures into the field
// error shape the API uses everywhere.
func Struct(payload interface{}) []*Error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []*Error{New("", CodeInvalidValue, err.Error())}
	}

	out := make([]*Error, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, New(fe.Field(), CodeInvalidValue, messageFor(fe)))
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "ruphone":
		return "phone number must start with +7 or 8 and contain 10 digits"
	case "min":
		return "value is below the allowed minimum (" + fe.Param() + ")"
	case "max":
		return "value is above the allowed maximum (" + fe.Param() + ")"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "invalid value"
	}
}
