package session

import (
	"errors"

	"github.com/OCAP2/datamaps/internal/events"
	"github.com/OCAP2/datamaps/pkg/core"
)

// ErrNotCollectible is returned when dismissing a marker whose group is not
// collectible
var ErrNotCollectible = errors.New("marker group is not collectible")

// ToggleMarkerDismissal flips the collected state of a marker, or of its
// whole group for group collectibles, and returns the new state. Global
// groups are also announced to other maps on the page. A storage error is
// returned after the in-memory state and markers have been updated.
func (m *Map) ToggleMarkerDismissal(mk *core.Marker) (bool, error) {
	g := mk.Group
	if g == nil || g.Collectible == core.CollectibleNone {
		return false, ErrNotCollectible
	}

	individual := g.Collectible == core.CollectibleIndividual
	id := g.ID
	if individual {
		id = mk.ID
	}
	state, err := m.scopes.ForGroup(g.Collectible).ToggleDismissal(id, !individual)
	if err != nil {
		m.logger.Error("failed to persist dismissal", "id", id, "error", err)
	}

	if individual {
		mk.SetDismissed(state)
		m.bus.Fire(events.MarkerDismissChange, mk)
		return state, err
	}

	m.updateGroupDismissal(g.ID, state)
	if g.Collectible == core.CollectibleGlobalGroup {
		m.bus.Fire(events.SendLinkedEvent, core.LinkedEvent{
			Type:    events.GroupDismissChange,
			GroupID: g.ID,
			State:   state,
		})
	}
	return state, err
}

// updateGroupDismissal applies state to every marker of a group
func (m *Map) updateGroupDismissal(groupID string, state bool) {
	for _, mk := range m.engine.ByLayer(groupID) {
		if mk.GroupID() != groupID {
			continue
		}
		mk.SetDismissed(state)
		m.bus.Fire(events.MarkerDismissChange, mk)
	}
	m.bus.Fire(events.GroupDismissChange, groupID)
}

// onLinkedEvent handles events relayed from other maps. Only global group
// dismissals are acted on.
func (m *Map) onLinkedEvent(evt core.LinkedEvent) {
	switch evt.Type {
	case events.GroupDismissChange:
		g, ok := m.groups[evt.GroupID]
		if !ok || g.Collectible != core.CollectibleGlobalGroup {
			return
		}
		m.scopes.Global.Apply(evt.GroupID, true, evt.State)
		m.updateGroupDismissal(evt.GroupID, evt.State)
	default:
		m.logger.Debug("ignoring linked event", "type", evt.Type)
	}
}
