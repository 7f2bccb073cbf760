package util

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func Getenv(name, defaultValue string) string {
	value := os.Getenv(name)
	if value == "" {
		return defaultValue
	}
	return value
}

// LookupEnv returns the value of name and whether it was set to something non-empty.
func LookupEnv(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func GetenvDuration(name string, defaultValue time.Duration) (time.Duration, error) {
	valueStr, ok := LookupEnv(name)
	if !ok {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid value for %s (%s): %w", name, valueStr, err)
	}
	return value, nil
}

func GetenvInt(name string, defaultValue int) (int, error) {
	valueStr, ok := LookupEnv(name)
	if !ok {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid value for %s (%s): %w", name, valueStr, err)
	}
	return value, nil
}

func GetenvFloat(name string, defaultValue float64) (float64, error) {
	valueStr, ok := LookupEnv(name)
	if !ok {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid value for %s (%s): %w", name, valueStr, err)
	}
	return value, nil
}

func GetenvBool(name string, defaultValue bool) (bool, error) {
	valueStr, ok := LookupEnv(name)
	if !ok {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid value for %s (%s): %w", name, valueStr, err)
	}
	return value, nil
}
