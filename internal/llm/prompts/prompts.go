package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

// MaxTextRunes caps how much document text is sent to the model.
const MaxTextRunes = 20000

//go:embed templates/*.txt
var Templates embed.FS

var (
	documentTagRegex        = regexp.MustCompile(`(?i)</?\s*document\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// PromptVariant selects the language of the detection prompt.
type PromptVariant string

const (
	// PromptEnglish asks the model in English.
	PromptEnglish PromptVariant = "en"
	// PromptSpanish asks the model in Spanish.
	PromptSpanish PromptVariant = "es"
)

var validVariants = map[PromptVariant]bool{
	PromptEnglish: true,
	PromptSpanish: true,
}

var (
	loadOnce        sync.Once
	loadErr         error
	detectTemplates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// DetectData holds template data for answer detection prompts.
type DetectData struct {
	Text string
}

// Load parses the detection templates from fsys.
// It uses sync.Once to ensure templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		detectTemplates = make(map[PromptVariant]*template.Template)

		for _, v := range []PromptVariant{PromptEnglish, PromptSpanish} {
			file := "templates/detect_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New("detect").Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			detectTemplates[v] = tmpl
		}
	})
	return loadErr
}

// BuildDetectPrompt renders the answer detection prompt for the given
// document text.
func BuildDetectPrompt(variant PromptVariant, text string) (string, error) {
	if detectTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := detectTemplates[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, DetectData{Text: sanitizeText(text)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeText(text string) string {
	text = documentTagRegex.ReplaceAllString(text, "")
	text = systemInstructionsRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "[No text extracted]"
	}

	if utf8.RuneCountInString(text) > MaxTextRunes {
		runes := []rune(text)
		text = string(runes[:MaxTextRunes])
	}

	return text
}
