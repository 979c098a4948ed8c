package commands

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
	"github.com/dmitrijs2005/contacttrace/internal/server/pipeline"
)

const tagLocationUnit = "location_unit"

// validate is shared by every command validator. validator.Validate caches
// struct metadata and is safe for concurrent use once configured.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterStructValidation(validateLocationUnit, ContactEntry{})
}

// validateLocationUnit rejects entries carrying only part of a location.
func validateLocationUnit(sl validator.StructLevel) {
	e := sl.Current().Interface().(ContactEntry)
	if _, err := models.LocationFromNullable(e.Latitude, e.Longitude, e.Accuracy); err != nil {
		sl.ReportError(e.Latitude, "Latitude", "Latitude", tagLocationUnit, "")
	}
}

// StructValidator validates a command through its `validate` struct tags.
type StructValidator[C pipeline.Command] struct{}

func (StructValidator[C]) Validate(cmd C) []common.FieldFailure {
	return Failures(validate.Struct(cmd))
}

// Failures converts a validator error into ordered field failures.
func Failures(err error) []common.FieldFailure {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []common.FieldFailure{{Field: "Command", Message: err.Error()}}
	}
	out := make([]common.FieldFailure, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, common.FieldFailure{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

// fieldPath drops the root struct name: "AddContactsCommand.Contacts[0].Timestamp"
// becomes "Contacts[0].Timestamp".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}

	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must contain at most %s%s", fe.Param(), unit)
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case tagLocationUnit:
		return models.ErrPartialLocation.Error()
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// RegisterValidators binds the validator of every validated command.
// ClearContactLocationCommand has none.
func RegisterValidators(r *pipeline.Registry) error {
	return errors.Join(
		pipeline.RegisterValidator[CreateProfileCommand](r, StructValidator[CreateProfileCommand]{}),
		pipeline.RegisterValidator[UpdatePushTokenCommand](r, StructValidator[UpdatePushTokenCommand]{}),
		pipeline.RegisterValidator[ReportLocationCommand](r, StructValidator[ReportLocationCommand]{}),
		pipeline.RegisterValidator[AddContactsCommand](r, StructValidator[AddContactsCommand]{}),
		pipeline.RegisterValidator[ExportContactsCommand](r, StructValidator[ExportContactsCommand]{}),
	)
}
