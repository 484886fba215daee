package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "test_secret"
	orderID := "order_ABC123"
	paymentID := "pay_XYZ789"

	good := sign(orderID, paymentID, secret)
	assert.True(t, VerifySignature(orderID, paymentID, good, secret))

	assert.False(t, VerifySignature(orderID, paymentID, good, "other_secret"))
	assert.False(t, VerifySignature(orderID, "pay_other", good, secret))
	assert.False(t, VerifySignature("order_other", paymentID, good, secret))
	assert.False(t, VerifySignature(orderID, paymentID, "", secret))
	assert.False(t, VerifySignature(orderID, paymentID, strings.ToUpper(good), secret))
}

func TestClientVerifyUsesKeySecret(t *testing.T) {
	c := NewRazorpayClient("", "key_id", "key_secret")
	sig := sign("order_1", "pay_1", "key_secret")
	assert.True(t, c.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, c.VerifySignature("order_1", "pay_2", sig))
}

func TestNewReceipt(t *testing.T) {
	a := NewReceipt()
	b := NewReceipt()
	assert.True(t, strings.HasPrefix(a, "rcpt_"))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("rcpt_")+26)
}
