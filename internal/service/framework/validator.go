package framework

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ougirez/maturity/internal/domain"
)

// NewValidator returns a validator that reports fields by their json names and
// understands the unittype tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("unittype", func(fl validator.FieldLevel) bool {
		return domain.UnitType(fl.Field().String()).Valid()
	})
	return v
}
