package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// program loading and IR validation
	IRInfo           Code = 1000
	IRBadProgram     Code = 1001
	IRUnknownNode    Code = 1002
	IRUnknownCallee  Code = 1003
	IRUnknownType    Code = 1004
	IRDuplicateName  Code = 1005
	IRParamOutOfSlot Code = 1006

	// escape pass
	EscInfo                Code = 2000
	EscUnresolvedArgument  Code = 2001
	EscExternalPessimistic Code = 2002
	EscNotConverged        Code = 2003
	EscVirtualCall         Code = 2004
	EscArrayTooLarge       Code = 2005

	// summary store
	SumInfo           Code = 3000
	SumSchemaMismatch Code = 3001
	SumCorrupt        Code = 3002
	SumParamMismatch  Code = 3003

	// project manifest
	ProjInfo        Code = 5000
	ProjBadManifest Code = 5001

	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:            "Unknown error",
	IRInfo:                 "IR information",
	IRBadProgram:           "Malformed program description",
	IRUnknownNode:          "Reference to an unknown node",
	IRUnknownCallee:        "Call to an undeclared function",
	IRUnknownType:          "Reference to an undeclared type",
	IRDuplicateName:        "Duplicate name",
	IRParamOutOfSlot:       "Parameter index out of range",
	EscInfo:                "Escape analysis information",
	EscUnresolvedArgument:  "Summary entry does not map to a caller node",
	EscExternalPessimistic: "External callee has no summary; assuming everything escapes",
	EscNotConverged:        "Summary did not converge; assuming everything escapes",
	EscVirtualCall:         "Virtual call; assuming every argument escapes",
	EscArrayTooLarge:       "Array too large or of unknown size for stack allocation",
	SumInfo:                "Summary store information",
	SumSchemaMismatch:      "Summary schema version mismatch",
	SumCorrupt:             "Corrupt summary entry",
	SumParamMismatch:       "Summary parameter count does not match declaration",
	ProjInfo:               "Project information",
	ProjBadManifest:        "Invalid esca.toml",
	ObsInfo:                "Observability information",
	ObsTimings:             "Pass timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("IR%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("ESC%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SUM%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("PRJ%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
