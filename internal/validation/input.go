package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

// Ограничения длины текстовых полей запросов.
const (
	MaxLinkLength        = 500
	MaxNotesLength       = 1000
	MaxReferenceLength   = 100
	MaxDescriptionLength = 500
	MaxReasonLength      = 500
	MaxNameLength        = 200
	MaxCategoryLength    = 100
)

// Field - проверяемое поле запроса.
type Field struct {
	Name     string
	Value    string
	Required bool
	Max      int
}

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return apperror.Validation(fieldName + ": значение слишком короткое").
			WithDetails(map[string]any{"field": fieldName, "min": min})
	}
	if max > 0 && length > max {
		return apperror.Validation(fieldName + ": значение слишком длинное").
			WithDetails(map[string]any{"field": fieldName, "max": max})
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая после обрезки пробелов.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.Validation(fieldName + " обязательно").
			WithDetails(map[string]any{"field": fieldName})
	}
	return nil
}

// ValidateFields проверяет поля по порядку и возвращает первую ошибку.
func ValidateFields(fields ...Field) error {
	for _, f := range fields {
		if f.Required {
			if err := ValidateNonEmpty(f.Name, f.Value); err != nil {
				return err
			}
		}
		if err := ValidateLength(f.Name, f.Value, 0, f.Max); err != nil {
			return err
		}
	}
	return nil
}

// Optional разыменовывает необязательное поле.
func Optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
