package entities

// ExportRole is the semantic role a node plays when exported to the interchange format.
type ExportRole string

const (
	RoleAuto     ExportRole = ""
	RoleEvent    ExportRole = "event"
	RoleFunction ExportRole = "function"
	RolePure     ExportRole = "pure"
)

// PinDirection is the data flow direction of a pin.
type PinDirection string

const (
	PinInput  PinDirection = "input"
	PinOutput PinDirection = "output"
)

// PinType is the semantic type carried by a pin.
type PinType string

const (
	PinExec     PinType = "exec"
	PinBool     PinType = "bool"
	PinInt      PinType = "int"
	PinFloat    PinType = "float"
	PinString   PinType = "string"
	PinVector   PinType = "vector"
	PinRotation PinType = "rotation"
	PinObject   PinType = "object"
)

// IsData reports whether the pin carries a value rather than execution flow.
func (t PinType) IsData() bool {
	return t != PinExec
}

// PinSpec declares a named attachment point used when a node is exported.
type PinSpec struct {
	Name      string       `json:"name"`
	Direction PinDirection `json:"direction"`
	Type      PinType      `json:"type"`
}
