// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type RequestID string
type MacroID string

func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}

func NewMacroID() MacroID {
	return MacroID(uuid.New().String())
}
