// Package rekuest validates incoming request data and turns violations into apierr responses.
package rekuest

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/clovid/prisma-sub000/internal/pkg/apierr"
	"github.com/clovid/prisma-sub000/internal/pkg/i18n"
	"github.com/clovid/prisma-sub000/internal/pkg/validate"
)

const TranslatorKey = "T"

func init() {
	for _, locale := range []string{"en", "de"} {
		tr, _ := i18n.UT.GetTranslator(locale)
		if err := enTranslations.RegisterDefaultTranslations(validate.Default, tr); err != nil {
			log.Warn().Err(err).Str("locale", locale).Msg("could not register translation")
		}
		err := validate.Default.RegisterTranslation("csvints", tr, func(ut ut.Translator) error {
			return ut.Add("csvints", "{0} must be a comma separated list of ids", true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("csvints", fe.Field())
			return t
		})
		if err != nil {
			log.Warn().Err(err).Str("locale", locale).Msg("could not register translation for function csvints")
		}
	}
}

type ErrorResponse struct {
	Field     string `json:"field,omitempty"`
	Violation string `json:"violation"`
	Message   string `json:"message"`
}

func TranslatorFromCtx(ctx *fiber.Ctx) ut.Translator {
	if tr, ok := ctx.Locals(TranslatorKey).(ut.Translator); ok {
		return tr
	}
	return i18n.UT.GetFallback()
}

func translate(utt ut.Translator, ve validator.ValidationErrors) []*ErrorResponse {
	trans := make([]*ErrorResponse, 0, len(ve))
	for _, fe := range ve {
		trans = append(trans, &ErrorResponse{
			Field:     fe.Namespace(),
			Violation: fe.Tag(),
			Message:   fe.Translate(utt),
		})
	}
	return trans
}

func validateStruct(ctx *fiber.Ctx, s any) []*ErrorResponse {
	err := validate.Default.Struct(s)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		panic(err)
	}
	return translate(TranslatorFromCtx(ctx), errs)
}

// ValidQuery parses the query string into dest and validates it. dest must be a pointer.
func ValidQuery(ctx *fiber.Ctx, dest any) error {
	if err := ctx.QueryParser(dest); err != nil {
		return apierr.ErrInvalidReq.Msg("invalid request: %s", err)
	}

	return ValidStruct(ctx, dest)
}

func ValidStruct(ctx *fiber.Ctx, dest any) error {
	if errs := validateStruct(ctx, dest); errs != nil {
		return apierr.NewInvalidViolations(errs)
	}

	return nil
}

func ValidVar(ctx *fiber.Ctx, field any, tag string) error {
	err := validate.Default.Var(field, tag)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok {
		return apierr.NewInvalidViolations(translate(TranslatorFromCtx(ctx), errs))
	}
	return apierr.ErrInvalidReq.Msg("invalid request: %s", err)
}
