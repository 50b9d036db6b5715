package utils

import (
	"strconv"
	"testing"
	"time"

	"github.com/maheshrc27/autopost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestSealJSON_RoundTrip(t *testing.T) {
	creds := models.Credentials{AccessToken: "tok", Username: "editor", Password: "pw"}

	sealed, err := SealJSON(creds, testKey)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "tok")

	var got models.Credentials
	require.NoError(t, OpenJSON(sealed, testKey, &got))
	assert.Equal(t, creds.AccessToken, got.AccessToken)
	assert.Equal(t, creds.Password, got.Password)
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	sealed, err := Encrypt([]byte("secret"), testKey)
	require.NoError(t, err)

	_, err = Decrypt(sealed, []byte("fedcba9876543210fedcba9876543210"))
	assert.Error(t, err)

	_, err = Decrypt("bm9wZQ==", testKey)
	assert.Error(t, err)
}

func TestToken_RoundTrip(t *testing.T) {
	token, err := GenerateToken("s3cret", 42, 1001, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(42), claims.UserID)
	assert.Equal(t, int64(1001), claims.ChatID)

	_, err = ValidateToken("other", token)
	assert.Error(t, err)

	expired, err := GenerateToken("s3cret", 42, 1001, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken("s3cret", expired)
	assert.Error(t, err)
}
