package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// maxOrderNumberAttempts bounds the unique-violation retry loop in
// PlaceOrder. Order numbers are human-readable and only probabilistically
// unique, so a collision regenerates instead of failing the checkout.
const maxOrderNumberAttempts = 3

// NewOrderNumber returns "ORD-" + the last six digits of the unix
// millisecond clock + four random digits.
func NewOrderNumber() string {
	millis := fmt.Sprintf("%d", time.Now().UnixMilli())
	if len(millis) > 6 {
		millis = millis[len(millis)-6:]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to the clock rather than abort a checkout.
		n = big.NewInt(time.Now().UnixNano() % 10000)
	}
	return fmt.Sprintf("ORD-%s%04d", millis, n.Int64())
}
