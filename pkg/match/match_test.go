package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aifactory/pkg/item"
	"aifactory/pkg/persona"
)

func makeInstance(t *testing.T, personaType string) *persona.Instance {
	t.Helper()
	inst, err := persona.NewInstance(persona.NewRegistry(), personaType, "", nil)
	require.NoError(t, err)
	return inst
}

func TestNoAvailablePersonas(t *testing.T) {
	wi := item.New("anything", "", item.CategoryTask)
	assert.Nil(t, Select(wi, nil))
	assert.Nil(t, Select(wi, []*persona.Instance{}))
}

func TestSecurityArchitectureRoutesToArchitect(t *testing.T) {
	architect := makeInstance(t, persona.TypeSoftwareArchitect)
	generic := makeInstance(t, persona.TypeBackendDeveloper)
	available := []*persona.Instance{generic, architect}

	wi := item.New("Security threat review architecture", "", item.CategorySecurity)
	selected := Select(wi, available)
	require.NotNil(t, selected)
	assert.Equal(t, architect.InstanceID, selected.InstanceID)
}

func TestSecurityWithoutArchitectureRoutesToQA(t *testing.T) {
	qa := makeInstance(t, persona.TypeQATestEngineer)
	generic := makeInstance(t, persona.TypeBackendDeveloper)
	available := []*persona.Instance{generic, qa}

	wi := item.New("Vulnerability scan of login service", "", item.CategorySecurity)
	selected := Select(wi, available)
	require.NotNil(t, selected)
	assert.Equal(t, qa.InstanceID, selected.InstanceID)
}

func TestSecurityKeywordInDescription(t *testing.T) {
	qa := makeInstance(t, persona.TypeQATestEngineer)
	available := []*persona.Instance{makeInstance(t, persona.TypeBackendDeveloper), qa}

	wi := item.New("Follow-up work", "Assess the risk of the new endpoint", item.CategoryTask)
	selected := Select(wi, available)
	require.NotNil(t, selected)
	assert.Equal(t, qa.InstanceID, selected.InstanceID)
}

func TestSecurityFallsThroughWhenPreferredTypesBusy(t *testing.T) {
	generic := makeInstance(t, persona.TypeBackendDeveloper)
	available := []*persona.Instance{generic}

	wi := item.New("Security threat review architecture", "", item.CategorySecurity)
	selected := Select(wi, available)
	require.NotNil(t, selected)
	assert.Equal(t, generic.InstanceID, selected.InstanceID)
}

// The fallback ignores declared capabilities entirely: any idle persona is
// eligible for any non-security item.
func TestNonSecurityItemTakesFirstAvailable(t *testing.T) {
	writer := makeInstance(t, persona.TypeTechnicalWriter)
	architect := makeInstance(t, persona.TypeSoftwareArchitect)
	available := []*persona.Instance{writer, architect}

	wi := item.New("Fix login bug", "Users cannot log in", item.CategoryBug)
	selected := Select(wi, available)
	require.NotNil(t, selected)
	assert.Equal(t, writer.InstanceID, selected.InstanceID)
}

func TestDeterminism(t *testing.T) {
	available := []*persona.Instance{
		makeInstance(t, persona.TypeBackendDeveloper),
		makeInstance(t, persona.TypeQATestEngineer),
		makeInstance(t, persona.TypeSoftwareArchitect),
	}
	wi := item.New("Threat model the payment flow", "", item.CategorySecurity)

	first := Select(wi, available)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first.InstanceID, Select(wi, available).InstanceID)
	}
}

// Scenario from the dispatch policy: with one idle architect and one idle
// generic persona, the security-architecture item must take the architect,
// leaving the generic persona free for the bug item.
func TestTwoItemScenario(t *testing.T) {
	architect := makeInstance(t, persona.TypeSoftwareArchitect)
	generic := makeInstance(t, persona.TypeBackendDeveloper)
	available := []*persona.Instance{generic, architect}

	securityItem := item.New("Security threat review architecture", "", item.CategorySecurity)
	bugItem := item.New("Fix login bug", "", item.CategoryBug)

	selected := Select(securityItem, available)
	require.NotNil(t, selected)
	assert.Equal(t, architect.InstanceID, selected.InstanceID)

	remaining := []*persona.Instance{generic}
	next := Select(bugItem, remaining)
	require.NotNil(t, next)
	assert.Equal(t, generic.InstanceID, next.InstanceID)
}
