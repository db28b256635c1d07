// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

// Package validation validates dashboard and portal forms with
// go-playground/validator v10 before anything is sent to the panel API.
//
// Field names in errors are taken from the json tag, so they line up with the
// field names the panel API reports in 422 responses:
//
//	if verr := validation.ValidateStruct(&form); verr != nil {
//	    view.FieldErrors = verr.FieldErrors()
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError is a single field failure.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the json name of the field that failed.
func (e *ValidationError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string {
	return e.tag
}

// Param returns the tag parameter, e.g. "100" for "max=100".
func (e *ValidationError) Param() string {
	return e.param
}

// Value returns the rejected value.
func (e *ValidationError) Value() interface{} {
	return e.value
}

// Error returns a human-readable error message.
func (e *ValidationError) Error() string {
	return e.message
}

// RequestValidationError collects every field failure of one struct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual failures.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error joins all messages.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}

	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// FieldErrors returns field -> message, keeping the first message per field.
func (ve *RequestValidationError) FieldErrors() map[string]string {
	out := make(map[string]string, len(ve.errors))
	for _, err := range ve.errors {
		if _, exists := out[err.field]; !exists {
			out[err.field] = err.message
		}
	}
	return out
}

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)

		// Registration only fails on empty tags or nil funcs.
		_ = validate.RegisterValidation("account", validateAccountNumber)
		_ = validate.RegisterValidation("pem", validatePEM)
	})
	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	default:
		return name
	}
}

// validateAccountNumber rejects the literal "undefined" that stale form
// state produces, in addition to blanks.
func validateAccountNumber(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return s != "" && s != "undefined"
}

func validatePEM(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return strings.HasPrefix(s, "-----BEGIN ") && strings.Contains(s, "-----END ")
}

// ValidateStruct returns nil when s is valid.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{
				field:   "unknown",
				tag:     "unknown",
				message: err.Error(),
			}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"account":  "%s must be a valid account number",
	"pem":      "%s must be a PEM encoded block",
	"hostname": "%s must be a valid hostname",
	"ip":       "%s must be a valid IP address",
	"url":      "%s must be a valid URL",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	return translateMinMax(fe, field, tag, param)
}

func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	isString := fe.Kind() == reflect.String

	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
