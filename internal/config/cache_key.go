package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestStatusChannel returns the Redis PubSub channel name carrying
// grading status events for a test.
func (r *CacheKeyStruct) TestStatusChannel(testID string) string {
	return fmt.Sprintf("test:%s:status", testID)
}

var CacheKey = NewCacheKeyStruct()
