package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestDefinitionKey holds the full definition of a published test, including
// the correctness flags. It is never sent to learners as-is.
func (r *CacheKeyStruct) TestDefinitionKey(testID string) string {
	return fmt.Sprintf("test:%s:definition", testID)
}

// PublishedTestsKey is the set of test ids currently served from cache.
func (r *CacheKeyStruct) PublishedTestsKey() string {
	return "tests:published"
}

// LoginAttemptsKey counts login attempts per client address in the current window.
func (r *CacheKeyStruct) LoginAttemptsKey(clientIP string) string {
	return fmt.Sprintf("ratelimit:login:%s", clientIP)
}

var CacheKey = NewCacheKeyStruct()
