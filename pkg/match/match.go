// Package match selects a persona instance for a work item.
package match

import (
	"strings"

	"aifactory/pkg/item"
	"aifactory/pkg/persona"
)

// securityKeywords is the fixed keyword set that routes items toward the
// architecture and QA persona types.
//
//nolint:gochecknoglobals // Static keyword table
var securityKeywords = []string{"security", "threat", "vulnerability", "risk"}

// Select returns the persona to assign the item to, or nil if none is
// available. Pure and deterministic: same item text and same available
// snapshot always yield the same result.
//
// Policy, in order:
//  1. Security keywords plus "architecture" in the item text prefer an
//     available software-architect.
//  2. Security keywords alone prefer an available qa-test-engineer.
//  3. Otherwise the first available persona wins, regardless of declared
//     capabilities. Capability data is effectively decorative for
//     non-security items; making the matcher capability-aware would be a
//     deliberate behavior change.
func Select(wi *item.WorkItem, available []*persona.Instance) *persona.Instance {
	if len(available) == 0 {
		return nil
	}

	haystack := strings.ToLower(wi.Title + " " + wi.Description)

	if containsAny(haystack, securityKeywords) {
		if strings.Contains(haystack, "architecture") {
			if inst := firstOfType(available, persona.TypeSoftwareArchitect); inst != nil {
				return inst
			}
		}
		if inst := firstOfType(available, persona.TypeQATestEngineer); inst != nil {
			return inst
		}
	}

	return available[0]
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func firstOfType(available []*persona.Instance, personaType string) *persona.Instance {
	for _, inst := range available {
		if inst.PersonaType == personaType {
			return inst
		}
	}
	return nil
}
