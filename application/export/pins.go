package export

import (
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/registry"
)

const (
	scriptStructVector  = "/Script/CoreUObject.ScriptStruct'/Script/CoreUObject.Vector'"
	scriptStructRotator = "/Script/CoreUObject.ScriptStruct'/Script/CoreUObject.Rotator'"
	classObject         = "/Script/CoreUObject.Class'/Script/CoreUObject.Object'"
)

// pinCategory is the interchange vocabulary for one pin type.
type pinCategory struct {
	Category    string
	SubCategory string
	SubObject   string
	// Default is written for unconnected data pins. Empty means no DefaultValue field.
	Default string
}

var pinCategories = map[entities.PinType]pinCategory{
	entities.PinExec:     {Category: "exec"},
	entities.PinBool:     {Category: "bool", Default: "false"},
	entities.PinInt:      {Category: "int", Default: "0"},
	entities.PinFloat:    {Category: "real", SubCategory: "double", Default: "0.0"},
	entities.PinString:   {Category: "string"},
	entities.PinVector:   {Category: "struct", SubObject: scriptStructVector, Default: "0.000000,0.000000,0.000000"},
	entities.PinRotation: {Category: "struct", SubObject: scriptStructRotator, Default: "0, 0, 0"},
	entities.PinObject:   {Category: "object", SubObject: classObject},
}

func categoryFor(t entities.PinType) pinCategory {
	if c, ok := pinCategories[t]; ok {
		return c
	}
	return pinCategories[entities.PinObject]
}

const (
	defaultInputPin  = "execute"
	defaultOutputPin = "then"
)

var defaultPins = []entities.PinSpec{
	{Name: defaultInputPin, Direction: entities.PinInput, Type: entities.PinExec},
	{Name: defaultOutputPin, Direction: entities.PinOutput, Type: entities.PinExec},
}

// pinsFor returns the pins a node exports under role. Events have no flow input and
// pure calls have no flow pins at all.
func pinsFor(n *entities.Node, role entities.ExportRole) []entities.PinSpec {
	declared := n.Payload.Pins
	if len(declared) == 0 {
		declared = defaultPins
	}
	out := make([]entities.PinSpec, 0, len(declared))
	for _, p := range declared {
		switch {
		case role == entities.RoleEvent && p.Direction == entities.PinInput && p.Type == entities.PinExec:
			continue
		case role == entities.RolePure && p.Type == entities.PinExec:
			continue
		}
		out = append(out, p)
	}
	return out
}

// resolveRole derives a role when the node does not declare one. A node that only
// feeds others starts a flow; a node with data pins only is pure.
func resolveRole(n *entities.Node, incoming, outgoing int) entities.ExportRole {
	if n.Payload.Role != entities.RoleAuto {
		return n.Payload.Role
	}
	if incoming == 0 && outgoing > 0 {
		return entities.RoleEvent
	}
	if len(n.Payload.Pins) > 0 {
		allData := true
		for _, p := range n.Payload.Pins {
			if !p.Type.IsData() {
				allData = false
				break
			}
		}
		if allData {
			return entities.RolePure
		}
	}
	return entities.RoleFunction
}

// findPin picks the pin an edge attaches to. A named pin must match; otherwise the
// first flow pin in the wanted direction is used, falling back to any pin in that
// direction. Attachment sides (top, right, bottom, left) are drawing handles rather
// than pins, so an edge naming one binds like an unnamed edge unless a declared pin
// carries that exact name.
func findPin(pins []entities.PinSpec, name string, dir entities.PinDirection) (int, bool) {
	if isSide(name) && !hasPin(pins, name, dir) {
		name = ""
	}
	if name != "" {
		for i, p := range pins {
			if p.Name == name && p.Direction == dir {
				return i, true
			}
		}
		return 0, false
	}
	fallback := -1
	for i, p := range pins {
		if p.Direction != dir {
			continue
		}
		if p.Type == entities.PinExec {
			return i, true
		}
		if fallback < 0 {
			fallback = i
		}
	}
	return fallback, fallback >= 0
}

func isSide(name string) bool {
	switch registry.Side(name) {
	case registry.SideTop, registry.SideRight, registry.SideBottom, registry.SideLeft:
		return true
	}
	return false
}

func hasPin(pins []entities.PinSpec, name string, dir entities.PinDirection) bool {
	for _, p := range pins {
		if p.Name == name && p.Direction == dir {
			return true
		}
	}
	return false
}
