package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/betbot/gohyper/exchange/types"
)

func TestTopOfBook(t *testing.T) {
	book := types.L2Book{Coin: "BTC"}
	assert.Equal(t, "单边或空订单簿", topOfBook(book))

	book.Levels[0] = []types.Level{{Px: "99.5", Sz: "1"}}
	book.Levels[1] = []types.Level{{Px: "100.5", Sz: "2"}}
	assert.Equal(t, "bid=99.5(1) ask=100.5(2) spread=100.00bps", topOfBook(book))
}
