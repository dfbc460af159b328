package api

import (
	"strings"

	"golang.org/x/text/language"
)

var messages = map[string]map[Kind]string{
	"en": {
		KindNetwork:      "Could not reach the server. Check your connection and try again.",
		KindUnauthorized: "Your session has ended. Please sign in again.",
		KindForbidden:    "You are not allowed to do that.",
		KindValidation:   "The request could not be processed.",
		KindServer:       "Something went wrong on our side. Please try again later.",
	},
	"tr": {
		KindNetwork:      "Sunucuya ulaşılamadı. Bağlantınızı kontrol edip tekrar deneyin.",
		KindUnauthorized: "Oturumunuz sona erdi. Lütfen tekrar giriş yapın.",
		KindForbidden:    "Bu işlem için yetkiniz yok.",
		KindValidation:   "İstek işlenemedi.",
		KindServer:       "Bir hata oluştu. Lütfen daha sonra tekrar deneyin.",
	},
}

// Localize returns the fallback message for kind in lang. Unknown languages
// fall back to English.
func Localize(kind Kind, lang string) string {
	table, ok := messages[normalizeLang(lang)]
	if !ok {
		table = messages["en"]
	}
	if msg, ok := table[kind]; ok {
		return msg
	}
	return messages["en"][KindServer]
}

// PreferredLang picks the supported language the client weighs highest in
// an Accept-Language header. Languages sent with q=0 are refused, never
// picked.
func PreferredLang(header, fallback string) string {
	tags, weights, err := language.ParseAcceptLanguage(header)
	if err == nil {
		for i, tag := range tags {
			if weights[i] <= 0 {
				continue
			}
			if base := baseOf(tag); messages[base] != nil {
				return base
			}
		}
	}
	return normalizeLang(fallback)
}

func normalizeLang(lang string) string {
	lang = strings.TrimSpace(lang)
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	return baseOf(tag)
}

func baseOf(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
