package minrepo

import (
	"strconv"
	"strings"
)

var fullwidthDigits = strings.NewReplacer(
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
	"＋", "+", "－", "-", "．", ".", "，", ",",
)

// cleanNumeric strips the decorations the site attaches to numbers:
// thousands separators, leading plus signs, counters (枚, 回, 円) and
// percent signs, plus full-width digits on some store layouts.
func cleanNumeric(s string) string {
	s = fullwidthDigits.Replace(strings.TrimSpace(s))
	s = strings.NewReplacer(
		",", "", "+", "", "枚", "", "回", "", "円", "", "%", "", "台", "",
	).Replace(s)
	return strings.TrimSpace(s)
}

func parseInt(s string) (int64, bool) {
	s = cleanNumeric(s)
	if s == "" || s == "-" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

func parseFloat(s string) (float64, bool) {
	s = cleanNumeric(s)
	if s == "" || s == "-" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
