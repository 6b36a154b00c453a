package transcriber

// Whisper hallucinates filler at utterance boundaries unless the prompt
// tells it not to, so every request carries a per-language guard prompt.

var basePrompts = map[string]string{
	"en": "The sentence may be cut off, do not make up words to fill in the rest of the sentence. Don't make up anything that wasn't clearly spoken. Don't include any background noises. ",
	"es": "La frase puede estar cortada, no inventes palabras para completar el resto de la frase. No inventes nada que no se haya dicho claramente. No incluyas ningún ruido de fondo.",
	"de": "Der Satz könnte abgeschnitten sein, ergänzen Sie keine Wörter, um den Rest des Satzes zu füllen. Erfinden Sie nichts, was nicht deutlich gesprochen wurde. Schließen Sie keine Hintergrundgeräusche ein.",
	"ru": "Предложение может быть оборвано, не добавляйте слов, чтобы заполнить остаток предложения. Не выдумывайте ничего, что не было ясно сказано. Не включайте фоновые шумы.",
}

var hintLeads = map[string]string{
	"en": "Words may include:",
	"es": "Las palabras pueden incluir:",
	"de": "Wörter können beinhalten:",
	"ru": "Слова могут включать:",
}

// BuildPrompt combines the guard prompt for the language with the
// user's vocabulary hints. Unknown languages fall back to English.
func BuildPrompt(language, hints string) string {
	base, ok := basePrompts[language]
	if !ok {
		base = basePrompts["en"]
	}
	if hints == "" {
		return base
	}
	lead, ok := hintLeads[language]
	if !ok {
		lead = hintLeads["en"]
	}
	return base + " " + lead + " " + hints
}

// SupportedLanguages lists the languages with a tuned guard prompt.
func SupportedLanguages() []string {
	return []string{"en", "es", "de", "ru"}
}
