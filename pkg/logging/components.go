package logging

// Component-specific loggers for easy incremental adoption

// Bridge logger for engine subprocess bridge operations
var Bridge = NewLogger("bridge")

// Engine logger for engine adapter operations
var Engine = NewLogger("engine")

// Orchestrator logger for deployment orchestration
var Orchestrator = NewLogger("orchestrator")

// Cost logger for cost tracking operations
var Cost = NewLogger("cost")

// State logger for state and history persistence
var State = NewLogger("state")

// Config logger for configuration operations
var Config = NewLogger("config")

// BridgeCall logs an engine bridge invocation
func BridgeCall(engine, command string, args []string) {
	Bridge.Debug("command=%s engine=%s args=%v", command, engine, args)
}

// BridgeSuccess logs a successful engine bridge call
func BridgeSuccess(engine, command string) {
	Bridge.Info("command=%s engine=%s status=success", command, engine)
}

// BridgeError logs a failed engine bridge call
func BridgeError(engine, command string, err error) {
	Bridge.Error("command=%s engine=%s error=%v", command, engine, err)
}
