// Package guard forces test mode when imported for side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CATALOG_TEST_MODE") == "" {
			_ = os.Setenv("CATALOG_TEST_MODE", "1")
		}
	})
}
