// Package token acquires and caches client-credential access tokens for
// service principals.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// CacheVersion is the current cache blob format version.
const CacheVersion = 1

// ErrInvalidCache indicates the persisted token cache could not be decoded.
var ErrInvalidCache = errors.New("token: invalid cache format")

// Cache is the persisted token state of one principal. It is stored as an
// opaque base64 blob so the storage layer never interprets token material.
type Cache struct {
	// Version is the cache format version for future compatibility.
	Version int `json:"v"`
	// AccessToken is the bearer token for Graph requests.
	AccessToken string `json:"access_token"`
	// ExpiresAt is the provider-reported expiry time.
	ExpiresAt time.Time `json:"expires_at"`
}

// NewCache creates a new empty cache.
func NewCache() *Cache {
	return &Cache{
		Version: CacheVersion,
	}
}

// Encode serialises the cache to a base64 string for storage.
func (c *Cache) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCache deserialises a cache from a base64 string.
func DecodeCache(s string) (*Cache, error) {
	if s == "" {
		return NewCache(), nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCache
	}

	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, ErrInvalidCache
	}

	// Version check for future migrations
	if cache.Version > CacheVersion {
		return nil, ErrInvalidCache
	}

	return &cache, nil
}

// Valid reports whether the cached token can still be used at the given
// instant, applying the expiry safety margin.
func (c *Cache) Valid(now time.Time, margin time.Duration) bool {
	if c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-margin))
}
