package models

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// inputs share their `binding` tags with gin, so the same rules hold when the
// core is called outside HTTP (cmd tools, tests).
var validate = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, strings.ToLower(fe.Field())+" failed on "+fe.Tag())
		}
		return validationError(strings.Join(msgs, ", "))
	}
	return validationError(err.Error())
}
