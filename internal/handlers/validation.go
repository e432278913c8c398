package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const notBlankTag = "notblank"

var (
	translator   ut.Translator
	registerOnce sync.Once
)

// RegisterValidators configures gin's validator: json field names in errors,
// english messages and the notblank tag.
func RegisterValidators() {
	registerOnce.Do(func() {
		validate, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_en := en.New()
		translator, _ = ut.New(_en, _en).GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(validate, translator)

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
		_ = validate.RegisterTranslation(notBlankTag, translator,
			func(t ut.Translator) error { return t.Add(notBlankTag, "{0} cannot be blank", false) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(notBlankTag, fe.Field())
				return s
			},
		)
	})
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// bindJSON binds the body and writes a 400 with per-field messages on failure.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && translator != nil {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Translate(translator)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	return false
}
