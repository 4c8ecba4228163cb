package reference

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/TheCyberMayor/PowerPay/internal/clock"
)

const (
	paymentPrefix     = "PWP"
	transactionPrefix = "PP"
	randomLength      = 6
)

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generator produces collision-resistant, human-traceable identifiers for
// payments, transactions and token disambiguation. It holds no state beyond
// its time source.
type Generator struct {
	clk clock.Clock
}

func NewGenerator(clk clock.Clock) *Generator {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Generator{clk: clk}
}

// Payment returns a payment reference of the form PWP_<unix-ms>_<RANDOM>.
func (g *Generator) Payment() string {
	return fmt.Sprintf("%s_%d_%s", paymentPrefix, g.clk.Now().UnixMilli(), randomBase36(randomLength))
}

// Transaction returns a transaction id of the form PP<ts8><hex8>, where ts8
// is the last eight digits of the unix-ms timestamp.
func (g *Generator) Transaction() string {
	millis := fmt.Sprintf("%d", g.clk.Now().UnixMilli())
	if len(millis) > 8 {
		millis = millis[len(millis)-8:]
	}
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return transactionPrefix + millis + strings.ToUpper(hex.EncodeToString(buf))
}

// Disambiguator returns a fresh random value used to salt token derivation.
func (g *Generator) Disambiguator() string {
	return uuid.NewString()
}

// IsPaymentReference reports whether value looks like an internally issued
// payment reference.
func IsPaymentReference(value string) bool {
	return strings.HasPrefix(value, paymentPrefix+"_")
}

func randomBase36(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}
	return string(out)
}
