package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("CATALOG_TEST_MODE", "1")
		if os.Getenv("VF_BASE_URL") == "" {
			_ = os.Setenv("VF_BASE_URL", "http://127.0.0.1:0/api")
		}
		if os.Getenv("CATALOG_DATA_DIR") == "" {
			_ = os.Setenv("CATALOG_DATA_DIR", os.TempDir())
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
