package exts

import (
	"errors"
	"reflect"
	"strings"

	"git.solsynth.dev/hypernet/polls/pkg/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validation = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validation.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func ValidateStruct(data any) error {
	err := validation.Struct(data)
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	var v services.ValidationError
	for _, item := range errs {
		v.Add(item.Field(), describeViolation(item))
	}
	return &v
}

func describeViolation(item validator.FieldError) string {
	switch item.Tag() {
	case "required":
		return "can't be blank"
	case "email":
		return "is invalid"
	case "min":
		return "is too short (minimum is " + item.Param() + ")"
	case "max":
		return "is too long (maximum is " + item.Param() + ")"
	default:
		return "failed on " + item.Tag()
	}
}

func BindAndValidate(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return ValidateStruct(out)
}
