package sim

import (
	"encoding/json"
	"reflect"

	"github.com/emberfall/emberfall/server/internal/logger"
	"github.com/emberfall/emberfall/server/internal/protocol"
)

// replicator tracks what each entity last looked like on the wire and turns
// the difference into patch operations. One replicator per room; it runs on
// the room goroutine only.
type replicator struct {
	last map[string]map[string]any
}

func newReplicator() *replicator {
	return &replicator{last: make(map[string]map[string]any)}
}

// diff compares the live entity set against the last broadcast state and
// returns the add, update, and remove operations needed to reconcile them.
// Update operations carry only the fields that changed.
func (rep *replicator) diff(entities map[string]*Entity) []protocol.PatchOp {
	var ops []protocol.PatchOp

	for id, e := range entities {
		fields := e.replicationFields()
		prev, known := rep.last[id]
		if !known {
			ops = append(ops, protocol.PatchOp{
				Op:        "add",
				SessionID: id,
				Fields:    fields,
			})
			rep.last[id] = fields
			continue
		}

		changed := make(map[string]any)
		for key, value := range fields {
			if !reflect.DeepEqual(prev[key], value) {
				changed[key] = value
			}
		}
		if len(changed) > 0 {
			ops = append(ops, protocol.PatchOp{
				Op:        "update",
				SessionID: id,
				Fields:    changed,
			})
			rep.last[id] = fields
		}
	}

	for id := range rep.last {
		if _, alive := entities[id]; !alive {
			ops = append(ops, protocol.PatchOp{Op: "remove", SessionID: id})
			delete(rep.last, id)
		}
	}

	return ops
}

// forget drops an entity's baseline so a future diff re-adds it from scratch.
func (rep *replicator) forget(id string) {
	delete(rep.last, id)
}

// snapshot encodes the full entity set for a welcome message.
func snapshot(entities map[string]*Entity) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(entities))
	for id, e := range entities {
		fields := e.replicationFields()
		fields["sessionId"] = id
		raw, err := json.Marshal(fields)
		if err != nil {
			logger.Error("Failed to encode entity snapshot", "session", id, "error", err)
			continue
		}
		out = append(out, raw)
	}
	return out
}
