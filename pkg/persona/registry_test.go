package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCapabilities(t *testing.T) {
	reg := NewRegistry()

	caps, err := reg.Capabilities(TypeSoftwareArchitect)
	require.NoError(t, err)
	assert.Contains(t, caps, "distributed systems design")

	caps, err = reg.Capabilities(TypeQATestEngineer)
	require.NoError(t, err)
	assert.Contains(t, caps, "security testing")
}

func TestRegistryUnknownType(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Capabilities("prompt-whisperer")
	require.Error(t, err)

	var unknownErr *UnknownTypeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "prompt-whisperer", unknownErr.PersonaType)
}

func TestRegistryListTypes(t *testing.T) {
	reg := NewRegistry()

	types := reg.ListTypes()
	assert.Contains(t, types, TypeSoftwareArchitect)
	assert.Contains(t, types, TypeQATestEngineer)
	assert.Contains(t, types, TypeSecurityEngineer)
}

func TestNewInstanceDefaults(t *testing.T) {
	reg := NewRegistry()

	inst, err := NewInstance(reg, TypeQATestEngineer, "", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, inst.InstanceID)
	assert.Equal(t, TypeQATestEngineer, inst.PersonaType)
	assert.True(t, inst.Available)
	assert.Empty(t, inst.CurrentItemID)

	// Display name falls back to the catalog profile.
	profile, ok := reg.Profile(TypeQATestEngineer)
	require.True(t, ok)
	assert.Equal(t, profile.DisplayName, inst.DisplayName)
}

func TestNewInstanceExtraSkills(t *testing.T) {
	reg := NewRegistry()

	inst, err := NewInstance(reg, TypeBackendDeveloper, "Dev One", []string{"grpc streaming"})
	require.NoError(t, err)

	assert.Equal(t, "Dev One", inst.DisplayName)
	assert.Contains(t, inst.Capabilities, "grpc streaming")
	assert.Contains(t, inst.SkillList(), "grpc streaming")
}

func TestNewInstanceUnknownTypeRegistry(t *testing.T) {
	_, err := NewInstance(NewRegistry(), "prompt-whisperer", "", nil)
	require.Error(t, err)
}
