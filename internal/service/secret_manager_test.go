package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretVersionName(t *testing.T) {
	assert.Equal(t, "projects/p1/secrets/stripe-webhook/versions/latest", secretVersionName("p1", "stripe-webhook"))
	assert.Equal(t, "projects/p2/secrets/x/versions/latest", secretVersionName("p1", "projects/p2/secrets/x"))
	assert.Equal(t, "projects/p2/secrets/x/versions/3", secretVersionName("p1", "projects/p2/secrets/x/versions/3"))
}
