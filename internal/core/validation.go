package core

// validation.go wires go-playground/validator to the ledger's input rules.
//
// Inputs are plain structs with `validate` tags. Three custom tags cover the
// formats the ledger screens have always enforced:
//
//	ddmmyyyy  1-2 digit day and month, 4 digit year separated by slashes
//	numstr    digits with at most one decimal point (empty allowed)
//	workid    IA00 followed by one or two digits
//
// Failures are translated into a single *ValidationError listing every field.

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ledgerDatePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	numberPattern     = regexp.MustCompile(`^\d*\.?\d*$`)
	workIDPattern     = regexp.MustCompile(`^IA00[0-9]{1,2}$`)
)

// newValidator builds a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("ddmmyyyy", matches(ledgerDatePattern))
	_ = v.RegisterValidation("numstr", matches(numberPattern))
	_ = v.RegisterValidation("workid", matches(workIDPattern))
	return v
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// ValidWorkID reports whether s is a well-formed work ID.
func ValidWorkID(s string) bool {
	return workIDPattern.MatchString(s)
}

// validateStruct runs v over in and converts failures to *ValidationError.
func validateStruct(v *validator.Validate, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		value, _ := fe.Value().(string)
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Value:   value,
			Message: tagMessage(fe),
		})
	}
	return out
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "ddmmyyyy":
		return MsgInvalidDate
	case "datetime":
		return MsgInvalidISO
	case "numstr", "numeric", "gte", "gt":
		return MsgInvalidNumber
	case "workid":
		return MsgInvalidWorkID
	case "eqfield":
		return MsgPasswordMatch
	case "min":
		if fe.Kind() == reflect.String {
			return MsgPasswordShort
		}
	}
	return MsgInvalidValue
}
