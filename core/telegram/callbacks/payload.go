package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadKeyIndex parses payloads shaped like "<key><sep><index>", e.g. "work_plan|1".
func PayloadKeyIndex(c tele.Context, sep string) (string, int, error) {
	return ParseKeyIndex(CallbackPayload(c), sep)
}

// ParseKeyIndex is the string form of PayloadKeyIndex.
func ParseKeyIndex(payload, sep string) (string, int, error) {
	key, raw, ok := strings.Cut(payload, sep)
	if !ok || key == "" {
		return "", 0, strconv.ErrSyntax
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return "", 0, err
	}
	if idx < 0 {
		return "", 0, strconv.ErrRange
	}
	return key, idx, nil
}

// KeyIndex builds the payload consumed by ParseKeyIndex.
func KeyIndex(key string, idx int, sep string) string {
	return key + sep + strconv.Itoa(idx)
}
