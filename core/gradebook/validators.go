package gradebook

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/grading"
)

var (
	corteTag  = "corte"
	corteText = grading.ErrInvalidCorte.Error()
)

// InitValidators registers the gradebook validations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(corteTag, corteValidation)
	core.RegisterCustomTranslation(validate, translator, corteTag, corteText)
}

func corteValidation(fl validator.FieldLevel) bool {
	if c, ok := fl.Field().Interface().(grading.Corte); ok {
		return c.Valid()
	}
	return false
}
