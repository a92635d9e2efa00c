package memory

import (
	"testing"

	"dg-agenda/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, New())
}
