// Package persona models the simulated workers the dispatcher assigns work to.
package persona

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Instance is the runtime record of one active persona worker. All mutable
// state (availability, assignment, counters) is owned by the Pool; nothing
// outside the pool mutates an instance.
//
//nolint:govet // struct alignment optimization not critical for this type
type Instance struct {
	InstanceID     string              `json:"instance_id"`
	PersonaType    string              `json:"persona_type"`
	DisplayName    string              `json:"display_name"`
	Capabilities   map[string]struct{} `json:"-"`
	Available      bool                `json:"available"`
	CurrentItemID  string              `json:"current_item_id,omitempty"`
	CompletedCount int                 `json:"completed_count"`
	FailedCount    int                 `json:"failed_count"`
	LastActivity   time.Time           `json:"last_activity"`
}

// NewInstance creates an available instance of the given type, copying the
// declared capabilities from the directory and applying instance overrides.
func NewInstance(dir Directory, personaType, displayName string, extraSkills []string) (*Instance, error) {
	caps, err := dir.Capabilities(personaType)
	if err != nil {
		return nil, err
	}

	combined := make(map[string]struct{}, len(caps)+len(extraSkills))
	for skill := range caps {
		combined[skill] = struct{}{}
	}
	for _, skill := range extraSkills {
		combined[skill] = struct{}{}
	}

	if displayName == "" {
		if profile, ok := dir.(interface{ Profile(string) (*Profile, bool) }); ok {
			if p, found := profile.Profile(personaType); found {
				displayName = p.DisplayName
			}
		}
		if displayName == "" {
			displayName = personaType
		}
	}

	return &Instance{
		InstanceID:   uuid.New().String(),
		PersonaType:  personaType,
		DisplayName:  displayName,
		Capabilities: combined,
		Available:    true,
		LastActivity: time.Now().UTC(),
	}, nil
}

// SkillList returns the capabilities as a sorted-free slice for serialization.
func (i *Instance) SkillList() []string {
	skills := make([]string, 0, len(i.Capabilities))
	for skill := range i.Capabilities {
		skills = append(skills, skill)
	}
	return skills
}

// NotFoundError reports an unknown persona instance id.
type NotFoundError struct {
	InstanceID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("persona instance %s not found", e.InstanceID)
}

// AlreadyBusyError reports an assignment to a persona that already holds an
// item. Should never happen with single-threaded dispatch; checked because
// completion callbacks run concurrently.
type AlreadyBusyError struct {
	InstanceID    string
	CurrentItemID string
}

func (e *AlreadyBusyError) Error() string {
	return fmt.Sprintf("persona instance %s already busy with item %s", e.InstanceID, e.CurrentItemID)
}

// UnknownTypeError reports a persona type absent from the directory.
type UnknownTypeError struct {
	PersonaType string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown persona type: %s", e.PersonaType)
}
