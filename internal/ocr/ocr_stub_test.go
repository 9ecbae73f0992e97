//go:build !ocr

package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStub(t *testing.T) {
	assert.False(t, Enabled)

	c, err := New("eng")
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrOCRNotEnabled)

	var stub Client
	_, err = stub.RecognizeFile(context.Background(), "Q_1.png")
	assert.ErrorIs(t, err, ErrOCRNotEnabled)
	assert.NoError(t, stub.Close())
}
