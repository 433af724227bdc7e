package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FILEHAVEN_TEST_MODE") == "" {
			_ = os.Setenv("FILEHAVEN_TEST_MODE", "1")
		}
	})
}
