package sensor

// Source is the contract every reading source fulfills, hardware or
// simulated. Init is called once before the first Read; an Init error
// means "this sensor is disabled for this run" and the orchestrator
// degrades accordingly instead of aborting. Read never panics on expected
// conditions: sensors that have nothing new report NoNewData, broken
// reads report Fault.
type Source[T any] interface {
	Init() error
	Read() Result[T]
	Close()
}

// The three source flavors the orchestrator polls.
type (
	ProximitySource   = Source[ProximityReading]
	LightSource       = Source[LightReading]
	EnvironmentSource = Source[EnvironmentalReading]
)
