package memstore

import (
	"testing"

	"github.com/conorfennell/knolrev/internal/storage"
	"github.com/conorfennell/knolrev/internal/storage/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		return New()
	})
}
