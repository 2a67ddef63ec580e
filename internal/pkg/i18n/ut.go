package i18n

import (
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
)

// UT falls back to English. German clients get the English validation messages.
var UT = ut.New(en.New(), en.New(), de.New())
