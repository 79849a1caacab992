package gate

import "go.uber.org/zap"

// Named physical outputs on the gate hardware.
const (
	SignalProcessing    = "processing"
	SignalAccessGranted = "access_granted"
	SignalAccessDenied  = "access_denied"
)

// Signaler is the narrow boundary to the hardware driver: assert or deassert
// a named output. The GPIO implementation lives outside this module.
type Signaler interface {
	Assert(name string)
	Deassert(name string)
}

// LogSignaler stands in where no hardware is attached (bench setups, tests).
type LogSignaler struct {
	Log *zap.SugaredLogger
}

func (s LogSignaler) Assert(name string)   { s.Log.Infof("signal %s on", name) }
func (s LogSignaler) Deassert(name string) { s.Log.Infof("signal %s off", name) }
