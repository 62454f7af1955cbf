package support

import (
	"os"
	"time"

	"github.com/project-flogo/core/data/coerce"
)

const (
	UserName = "PETRIFLOW_USERNAME"
	HostName = "PETRIFLOW_HOST_NAME"

	MaxStepCount        = "PETRIFLOW_MAX_STEP_COUNT"
	MaxStepCountDefault = 100000

	StateRecording        = "PETRIFLOW_STATE_RECORDING"
	StateRecordingDefault = "off"

	WorklistPort        = "PETRIFLOW_WORKLIST_PORT"
	WorklistPortDefault = 8080

	BreakerMaxFailures        = "PETRIFLOW_BREAKER_MAX_FAILURES"
	BreakerMaxFailuresDefault = 5

	BreakerTimeout        = "PETRIFLOW_BREAKER_TIMEOUT"
	BreakerTimeoutDefault = 30 * time.Second
)

var username, hostName string

func GetUserName() string {
	if len(username) > 0 {
		return username
	}
	username = os.Getenv(UserName)
	if len(username) > 0 {
		return username
	}
	return "petriflow"
}

func GetHostId() string {
	if len(hostName) > 0 {
		return hostName
	}
	hostName = os.Getenv(HostName)
	if len(hostName) > 0 {
		return hostName
	}
	h, _ := os.Hostname()
	return h
}

// GetMaxStepCount returns the maximum number of automatic firings of one
// enablement scan
func GetMaxStepCount() int {
	return getInt(MaxStepCount, MaxStepCountDefault)
}

// GetStateRecording returns the configured state recording mode
func GetStateRecording() string {
	v, ok := os.LookupEnv(StateRecording)
	if !ok || v == "" {
		return StateRecordingDefault
	}
	return v
}

func GetWorklistPort() int {
	return getInt(WorklistPort, WorklistPortDefault)
}

func GetBreakerMaxFailures() int {
	return getInt(BreakerMaxFailures, BreakerMaxFailuresDefault)
}

func GetBreakerTimeout() time.Duration {
	v, ok := os.LookupEnv(BreakerTimeout)
	if !ok {
		return BreakerTimeoutDefault
	}
	timeout, err := time.ParseDuration(v)
	if err != nil || timeout <= 0 {
		return BreakerTimeoutDefault
	}
	return timeout
}

func getInt(name string, defaultValue int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return defaultValue
	}
	i, err := coerce.ToInt(v)
	if err != nil || i <= 0 {
		return defaultValue
	}
	return i
}
