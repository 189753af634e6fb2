package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderLocator_Get(t *testing.T) {
	locator := NewProviderLocator()

	for _, provider := range []string{ProviderOpenAI, ProviderGemini, ProviderAnthropic} {
		client, err := locator.Get(provider)
		require.NoError(t, err, provider)
		assert.NotNil(t, client, provider)
	}
}

func TestProviderLocator_Get_Unsupported(t *testing.T) {
	locator := NewProviderLocator()

	client, err := locator.Get("mistral")

	assert.Error(t, err)
	assert.Nil(t, client)
}
