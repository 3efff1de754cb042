package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	key, err := ObjectKey("booking_b1_u1_2")
	require.NoError(t, err)
	assert.Equal(t, "receipts/booking_b1_u1_2.json", key)

	for _, bad := range []string{"", "  ", "../etc", "a/b", ".."} {
		_, err := ObjectKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseEndpoint(t *testing.T) {
	assert.Equal(t, "minio:9000", parseEndpoint("http://minio:9000"))
	assert.Equal(t, "minio:9000", parseEndpoint("minio:9000"))
}

func TestNewReceiptArchiveValidates(t *testing.T) {
	_, err := NewReceiptArchive("", false, "k", "s", "b", nil)
	assert.Error(t, err)
	_, err = NewReceiptArchive("http://minio:9000", false, "k", "s", " ", nil)
	assert.Error(t, err)
	a, err := NewReceiptArchive("http://minio:9000", false, "k", "s", "receipts", nil)
	require.NoError(t, err)
	assert.Equal(t, "receipts", a.bucket)
}
