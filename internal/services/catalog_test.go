package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogShape(t *testing.T) {
	cat := Catalog()
	require.NotEmpty(t, cat)

	names := make(map[string]bool)
	ports := make(map[int]bool)
	for _, svc := range cat {
		assert.NotEmpty(t, svc.Name)
		assert.NotEmpty(t, svc.Description, "%s needs a description for the menu", svc.Name)
		assert.True(t, strings.HasPrefix(svc.Repo, "https://"), "%s repo must be cloneable", svc.Name)
		assert.Greater(t, svc.Port, 0, "%s needs a port for the firewall policy", svc.Name)

		assert.False(t, names[svc.Name], "duplicate service name %s", svc.Name)
		assert.False(t, ports[svc.Port], "port %d assigned twice", svc.Port)
		names[svc.Name] = true
		ports[svc.Port] = true

		// A model choice without a key to write it to is unusable.
		if len(svc.ModelOptions) > 0 {
			assert.NotEmpty(t, svc.ModelKey, "%s has model options but no model key", svc.Name)
		}
	}
}

func TestCatalogReturnsCopy(t *testing.T) {
	cat := Catalog()
	original := cat[0].Name
	cat[0].Name = "tampered"

	fresh := Catalog()
	assert.Equal(t, original, fresh[0].Name)
}

func TestNamesMatchCatalogOrder(t *testing.T) {
	names := Names()
	cat := Catalog()
	require.Len(t, names, len(cat))
	for i, svc := range cat {
		assert.Equal(t, svc.Name, names[i])
	}
}

func TestPortsSorted(t *testing.T) {
	assert.Equal(t, []int{8000, 8100, 8188, 8200, 9100, 11434}, Ports())
}

func TestLookup(t *testing.T) {
	svc, err := Lookup("ollama")
	require.NoError(t, err)
	assert.Equal(t, 11434, svc.Port)

	_, err = Lookup("no-such-service")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")
	assert.Contains(t, err.Error(), "ollama", "error should list the known services")
}

func TestModelDefaultsAreOffered(t *testing.T) {
	// The default model must be one of the menu options, otherwise the
	// install wizard preselects a value it does not offer.
	for _, svc := range Catalog() {
		if svc.ModelKey == "" {
			continue
		}
		var def string
		for _, e := range svc.Env {
			if e.Key == svc.ModelKey {
				def = e.Value
			}
		}
		require.NotEmpty(t, def, "%s has a model key but no default in its env", svc.Name)
		assert.Contains(t, svc.ModelOptions, def, "%s default model missing from options", svc.Name)
	}
}
