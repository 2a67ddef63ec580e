package middlewares

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/language"

	"github.com/clovid/prisma-sub000/internal/pkg/i18n"
	"github.com/clovid/prisma-sub000/internal/pkg/rekuest"
)

// InjectI18n picks the validation message translator from Accept-Language.
func InjectI18n() fiber.Handler {
	return func(c *fiber.Ctx) error {
		set := func(trans ut.Translator) error {
			c.Locals(rekuest.TranslatorKey, trans)
			return c.Next()
		}

		tags, _, err := language.ParseAcceptLanguage(c.Get(fiber.HeaderAcceptLanguage))
		if err != nil {
			return set(i18n.UT.GetFallback())
		}

		langs := make([]string, 0, len(tags))
		for _, tag := range tags {
			base, _ := tag.Base()
			langs = append(langs, strings.ToLower(base.String()))
		}

		trans, _ := i18n.UT.FindTranslator(langs...)
		return set(trans)
	}
}
