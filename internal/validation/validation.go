// Package validation は入力構造体の検証と、検証結果のAPIError変換を提供する。
package validation

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/hitoshi/dongin/internal/model"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// カスタムタグ
	notBlankTag = "notblank"
	dateTag     = "ymd"
	clockTag    = "hhmm"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// エラーのフィールド名にはJSONタグ名を使う
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlank)
	_ = validate.RegisterValidation(dateTag, layoutValidation(model.DateLayout))
	_ = validate.RegisterValidation(clockTag, layoutValidation("15:04"))

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, dateTag, clockTag} {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustom)
	}
}

// Struct は構造体のvalidateタグを検証する。
// 検証に失敗した場合はフィールド一覧付きのVALIDATION_FAILEDを返す。
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return model.NewValidationError("입력값을 확인해주세요.")
	}

	fields := make([]model.FieldError, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, model.FieldError{Field: fe.Field(), Error: fe.Translate(translator)})
	}
	return model.NewValidationError("입력값을 확인해주세요.", fields...)
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case dateTag:
		return "must be a date in YYYY-MM-DD format"
	case clockTag:
		return "must be a time in HH:MM format"
	default:
		return ""
	}
}

func notBlank(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return false
}

// layoutValidation は文字列がlayoutで解析できるかを検証する。空文字は許可する（requiredと併用する）。
func layoutValidation(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		if s == "" {
			return true
		}
		_, err := time.Parse(layout, s)
		return err == nil
	}
}
