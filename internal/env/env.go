package env

import (
	"log"
	"os"
	"strconv"
	"time"
)

func Must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}
func Get(k, def string) string {
	v := os.Getenv(k)
	if v == "" { return def }
	return v
}
func GetInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" { return def }
	i, err := strconv.Atoi(v)
	if err != nil { return def }
	return i
}
func GetDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" { return def }
	d, err := time.ParseDuration(v)
	if err != nil { return def }
	return d
}
