// Package i18n holds the user-facing message catalogs.
package i18n

import "strings"

// Key identifies a user-facing message.
type Key string

const (
	EmptyInput        Key = "empty_input"
	NetworkError      Key = "network_error"
	InvalidRequest    Key = "invalid_request"
	RateLimited       Key = "rate_limited"
	Unauthorized      Key = "unauthorized"
	ServerError       Key = "server_error"
	ServiceDown       Key = "service_down"
	GenericError      Key = "generic_error"
	ContinueFailed    Key = "continue_failed"
	NewChatTitle      Key = "new_chat_title"
	SearchFailed      Key = "search_failed"
	InvalidFontSize   Key = "invalid_font_size"
	InvalidSpeed      Key = "invalid_speed"
	PrefsSaveFailed   Key = "prefs_save_failed"
	ContinueInstruction Key = "continue_instruction"
)

const (
	Turkish = "tr"
	English = "en"
)

var catalogs = map[string]map[Key]string{
	Turkish: {
		EmptyInput:        "Lütfen bir mesaj girin.",
		NetworkError:      "Bağlantı hatası. İnternet bağlantınızı kontrol edip tekrar deneyin.",
		InvalidRequest:    "Geçersiz istek. Lütfen girdilerinizi kontrol edip tekrar deneyin.",
		RateLimited:       "Çok fazla istek gönderildi. Lütfen biraz bekleyip tekrar deneyin.",
		Unauthorized:      "Yetkilendirme hatası. Lütfen daha sonra tekrar deneyin.",
		ServerError:       "Sunucu hatası. Lütfen daha sonra tekrar deneyin.",
		ServiceDown:       "Şu anda AI servisi yanıt vermiyor. Lütfen daha sonra tekrar deneyin.",
		GenericError:      "Bir hata oluştu. Lütfen tekrar deneyin.",
		ContinueFailed:    "Yanıtı devam ettirirken bir hata oluştu.",
		NewChatTitle:      "Yeni Sohbet",
		SearchFailed:      "Arama yapılırken bir hata oluştu. Lütfen daha sonra tekrar deneyin.",
		InvalidFontSize:   "Geçersiz yazı boyutu seçildi",
		InvalidSpeed:      "Geçersiz yanıt hızı seçildi",
		PrefsSaveFailed:   "Tercihler kaydedilemedi",
		ContinueInstruction: "Lütfen kaldığın yerden devam et.",
	},
	English: {
		EmptyInput:        "Please enter a message.",
		NetworkError:      "Connection error. Check your internet connection and try again.",
		InvalidRequest:    "Invalid request. Please check your input and try again.",
		RateLimited:       "Too many requests. Please wait a moment and try again.",
		Unauthorized:      "Authorization error. Please try again later.",
		ServerError:       "Server error. Please try again later.",
		ServiceDown:       "The AI service is not responding right now. Please try again later.",
		GenericError:      "Something went wrong. Please try again.",
		ContinueFailed:    "Something went wrong while continuing the response.",
		NewChatTitle:      "New Chat",
		SearchFailed:      "Search failed. Please try again later.",
		InvalidFontSize:   "Invalid font size selected",
		InvalidSpeed:      "Invalid response speed selected",
		PrefsSaveFailed:   "Preferences could not be saved",
		ContinueInstruction: "Please continue from where you left off.",
	},
}

// Resolve maps a preference language ("auto", "tr", "en", ...) to a catalog
// language. Anything unknown falls back to Turkish.
func Resolve(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if _, ok := catalogs[lang]; ok {
		return lang
	}
	return Turkish
}

// T returns the message for key in the given language.
func T(language string, key Key) string {
	if msg, ok := catalogs[Resolve(language)][key]; ok {
		return msg
	}
	return catalogs[Turkish][key]
}
