package state

import (
	"fmt"
	"strings"

	"github.com/project-flogo/core/data/coerce"
)

type RecordingMode string

const (
	// RecordingModeOff indicates that the recording been turned off
	RecordingModeOff RecordingMode = "off"
	// RecordingModeStep indicates that the state recording stores steps data only
	RecordingModeStep RecordingMode = "step"
	// RecordingModeFull indicates that the state recording stores both steps and snapshot data
	RecordingModeFull RecordingMode = "full"
	// RecordingModeSnapshot indicates that the state recording stores snapshot data only
	RecordingModeSnapshot RecordingMode = "snapshot"
)

// ToRecordingMode convert data to recording model const
func ToRecordingMode(mode interface{}) (RecordingMode, error) {
	m, _ := coerce.ToString(mode)
	rMode := RecordingMode(strings.ToLower(m))
	switch rMode {
	case RecordingModeOff, RecordingModeFull, RecordingModeSnapshot, RecordingModeStep:
		return rMode, nil
	default:
		return RecordingModeOff, fmt.Errorf("unsupported state recording mode [%s]", m)
	}
}

// RecordSteps check to see if step recording is enabled
func RecordSteps(stateRecordingMode RecordingMode) bool {
	switch stateRecordingMode {
	case RecordingModeStep, RecordingModeFull:
		return true
	default:
		return false
	}
}

// RecordSnapshot check to see if snapshot recording is enabled
func RecordSnapshot(stateRecordingMode RecordingMode) bool {
	switch stateRecordingMode {
	case RecordingModeSnapshot, RecordingModeFull:
		return true
	default:
		return false
	}
}
