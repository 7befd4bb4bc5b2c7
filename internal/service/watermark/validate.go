package watermark

import (
	"github.com/go-playground/validator/v10"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

func newValidator() *validator.Validate {
	v := validator.New()

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("watermark_color", func(fl validator.FieldLevel) bool {
		_, err := model.ParseColor(fl.Field().String())
		return err == nil
	})

	return v
}
