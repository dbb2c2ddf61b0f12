package sit

import (
	"regexp"
	"time"

	"github.com/patrickmn/go-cache"
)

type compiled struct {
	re  *regexp.Regexp
	err error
}

// patternCache keeps compiled expressions, including compile failures, so
// repeated tests of the same definition do not recompile.
type patternCache struct {
	cache *cache.Cache
}

func newPatternCache() *patternCache {
	return &patternCache{cache: cache.New(30*time.Minute, 10*time.Minute)}
}

func (c *patternCache) compile(expr string, caseSensitive bool) (*regexp.Regexp, error) {
	key := expr
	if !caseSensitive {
		key = "(?i)" + expr
	}
	if x, found := c.cache.Get(key); found {
		entry := x.(compiled)
		return entry.re, entry.err
	}
	re, err := regexp.Compile(key)
	c.cache.Set(key, compiled{re: re, err: err}, cache.DefaultExpiration)
	return re, err
}

var patterns = newPatternCache()
