package memory_test

import (
	"testing"

	"github.com/aussiebroadwan/regconsole/internal/auth/store"
	"github.com/aussiebroadwan/regconsole/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/regconsole/internal/auth/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.SessionStore {
		return memory.NewStore()
	})
}
