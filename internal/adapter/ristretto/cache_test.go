package ristretto_test

import (
	"testing"

	"github.com/doctorauto/sophia/internal/adapter/ristretto"
	"github.com/doctorauto/sophia/internal/port/cache/cachetest"
)

func TestCacheContract(t *testing.T) {
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	cachetest.Run(t, c)
}
