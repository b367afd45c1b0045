package utils

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	angleBracketPattern = regexp.MustCompile(`<[^>]*>`)
	whitespaceRun       = regexp.MustCompile(`[\t\r\n ]+`)
)

// RemoveAngleBracketContent 移除尖括号及其内容
func RemoveAngleBracketContent(text string) string {
	return angleBracketPattern.ReplaceAllString(text, "")
}

// RemoveControlCharacters 移除控制字符，保留换行符和制表符
func RemoveControlCharacters(text string) string {
	return strings.Map(func(r rune) rune {
		if (r < 32 && r != 9 && r != 10 && r != 13) || r == 127 {
			return -1
		}
		return r
	}, text)
}

// SanitizeTextField cleans a single-line form value: markup and control
// characters are dropped and whitespace runs collapse to one space.
func SanitizeTextField(text string) string {
	text = RemoveAngleBracketContent(text)
	text = RemoveControlCharacters(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// RandomSecret returns n random bytes hex encoded.
func RandomSecret(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
