package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("COMPASS_TEST_MODE") == "" {
			_ = os.Setenv("COMPASS_TEST_MODE", "1")
		}
	})
}
