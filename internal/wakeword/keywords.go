package wakeword

import (
	"path/filepath"
	"slices"
	"strings"
)

// BuiltInKeywords are the keyword names bundled with the engine.
var BuiltInKeywords = []string{
	"alexa",
	"americano",
	"blueberry",
	"bumblebee",
	"computer",
	"grapefruit",
	"grasshopper",
	"hey google",
	"hey siri",
	"jarvis",
	"ok google",
	"picovoice",
	"porcupine",
	"terminator",
}

// keywordFileSuffixParts is the number of trailing name parts a console
// export appends: language, platform, major version, minor, patch.
const keywordFileSuffixParts = 5

// IsBuiltIn reports whether name is a bundled keyword.
func IsBuiltIn(name string) bool {
	return slices.Contains(BuiltInKeywords, strings.ToLower(strings.TrimSpace(name)))
}

// KeywordName derives the spoken phrase from a keyword file path:
// "hey-there_en_linux_v3_0_0.ppn" becomes "hey-there" and
// "hey_there_en_linux_v3_0_0.ppn" becomes "hey there".
func KeywordName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".ppn")
	parts := strings.Split(base, "_")
	if len(parts) > keywordFileSuffixParts {
		return strings.Join(parts[:len(parts)-keywordFileSuffixParts], " ")
	}
	return parts[0]
}
