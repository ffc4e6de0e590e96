package util

import (
	"regexp"
	"strconv"
	"strings"
)

var reFloatInt = regexp.MustCompile(`^(\d+)\.0+$`)

// ParseID parses a numeric identifier cell. Spreadsheet exports render integer
// cells as "5.0", so a zero fraction is accepted.
func ParseID(input string) (int, bool) {
	token := strings.TrimSpace(strings.ReplaceAll(input, " ", ""))
	if token == "" {
		return 0, false
	}
	if m := reFloatInt.FindStringSubmatch(token); m != nil {
		token = m[1]
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return v, true
}

func IsDigits(input string) bool {
	if input == "" {
		return false
	}
	for i := 0; i < len(input); i++ {
		if input[i] < '0' || input[i] > '9' {
			return false
		}
	}
	return true
}
