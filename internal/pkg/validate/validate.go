package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/guregu/null.v3"
)

var Default = New()

func New() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("caseinsensitiveoneof", caseInsensitiveOneOf)
	v.RegisterValidation("csvints", csvInts)
	v.RegisterCustomTypeFunc(nullIntValuer, null.Int{})
	v.RegisterCustomTypeFunc(nullStringValuer, null.String{})

	return v
}

func caseInsensitiveOneOf(fl validator.FieldLevel) bool {
	val := strings.ToLower(fl.Field().String())
	candidates := strings.Split(strings.ToLower(fl.Param()), " ")
	for _, v := range candidates {
		if val == v {
			return true
		}
	}
	return false
}

// csvInts accepts an empty string or a comma separated list of non-negative integers.
func csvInts(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

func nullIntValuer(field reflect.Value) interface{} {
	if valuer, ok := field.Interface().(null.Int); ok {
		return valuer.Int64
	}

	return nil
}

func nullStringValuer(field reflect.Value) interface{} {
	if valuer, ok := field.Interface().(null.String); ok {
		return valuer.String
	}

	return nil
}
