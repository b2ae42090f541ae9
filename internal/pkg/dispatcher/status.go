package dispatcher

import (
	"fmt"
	"time"

	"github.com/StefanHaberl/VoiceFox/internal/pkg/cache"
)

// Cache key format for conversion status polling
const conversionStatusKeyFormat = "conversion:status:%s" // Format: conversion:status:<uuid>

const conversionStatusTTL = 24 * time.Hour

// SetConversionStatus mirrors the database status into the cache so status
// polling does not hit MySQL.
func SetConversionStatus(conversionUUID string, status string) error {
	key := fmt.Sprintf(conversionStatusKeyFormat, conversionUUID)
	return cache.Set(key, status, conversionStatusTTL)
}

// GetConversionStatus retrieves the cached processing status of a conversion
func GetConversionStatus(conversionUUID string) (string, error) {
	key := fmt.Sprintf(conversionStatusKeyFormat, conversionUUID)
	return cache.Get(key)
}
