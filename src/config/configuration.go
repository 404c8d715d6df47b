package config

import (
	"os"
	"strconv"
)

func GetenvStr(key string) string {
	return os.Getenv(key)
}

// GetenvInt falls back to def when the variable is not set.
func GetenvInt(key string, def int) (int, error) {
	s := GetenvStr(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// GetenvBool falls back to def when the variable is not set.
func GetenvBool(key string, def bool) (bool, error) {
	s := GetenvStr(key)
	if s == "" {
		return def, nil
	}
	return strconv.ParseBool(s)
}
