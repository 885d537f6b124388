package dto

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	isbnPattern = regexp.MustCompile(`^978-\d{10}$`)
)

// Validate checks a request payload against its `validate` tags. Failures are
// validator.ValidationErrors keyed by JSON field name.
func Validate(payload any) error {
	return instance().Struct(payload)
}

func instance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("catalog_isbn", func(fl validator.FieldLevel) bool {
			return isbnPattern.MatchString(fl.Field().String())
		})
		// max counts runes; max_bytes bounds the encoded length.
		_ = v.RegisterValidation("max_bytes", func(fl validator.FieldLevel) bool {
			limit, err := strconv.Atoi(fl.Param())
			return err == nil && len(fl.Field().String()) <= limit
		})
		validate = v
	})
	return validate
}
