package config

type Config struct {
	Device  DeviceConfig  `json:"device"`
	Routine RoutineConfig `json:"routine"`
	Audio   AudioConfig   `json:"audio"`
	Logging LoggingConfig `json:"logging"`

	// Storage is the optional long-term memory backend. If omitted, the
	// device forgets everything on power-off.
	Storage *StorageConfig `json:"storage,omitempty"`

	Scheduler SchedulerConfig `json:"scheduler"`
	Tasks     TasksConfig     `json:"tasks"`
}

// DeviceConfig identifies the toy and its pixel output.
type DeviceConfig struct {
	// Name is the device's identity, used in logs and persisted state.
	Name string `json:"name"`
	// Pixels is the LED ring size. The stock ring has 10.
	Pixels int `json:"pixels"`
	// Driver selects the ring backend: "sim" (in-memory) or "serial".
	Driver string `json:"driver"`
	// Serial configures the serial NeoPixel bridge (driver "serial").
	Serial SerialConfig `json:"serial,omitempty"`
	// Brightness scales every rendered frame, 0.0–1.0.
	Brightness float64 `json:"brightness,omitempty"`
}

type SerialConfig struct {
	Port string `json:"port"` // e.g. /dev/ttyACM0
	Baud int    `json:"baud"` // default 115200
}

// RoutineConfig selects the light behavior that runs at boot. Button A
// cycles Active at runtime; the new selection is written back here.
type RoutineConfig struct {
	// Active is one of "aware", "cruise", "meditate", "dance".
	Active string `json:"active"`
	// ColorMode is the palette selector (1-3), cycled by button B.
	ColorMode int `json:"color_mode"`
}

type AudioConfig struct {
	Enabled bool `json:"enabled"`
	// Volume is the tone level in (0, 1]; omitted means full.
	Volume float64 `json:"volume,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer for the toy's long-term
// memory (interaction history, mood counters).
//
// Example:
//
//	"storage": { "driver": "file", "path": "./illo_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SchedulerConfig tunes the cooperative runloop.
//
// All durations are Go duration strings (e.g. "2ms", "1s").
//
// Defaults (when fields are omitted/zero):
//   - min_idle_sleep: "2ms"
//   - housekeeping_interval: "1s"
type SchedulerConfig struct {
	MinIdleSleep         string `json:"min_idle_sleep,omitempty"`
	HousekeepingInterval string `json:"housekeeping_interval,omitempty"`
}

// TasksConfig carries per-task tuning. Every block is optional; tasks fall
// back to their built-in periods and budgets. The original firmware's
// timings were tuned for one specific board, so they are configuration
// here rather than constants.
type TasksConfig struct {
	Buttons      TaskTuning        `json:"buttons,omitempty"`
	Interactions InteractionTuning `json:"interactions,omitempty"`
	Routine      TaskTuning        `json:"routine,omitempty"`
	Maintenance  MaintenanceTuning `json:"maintenance,omitempty"`
	Report       TaskTuning        `json:"report,omitempty"`
}

// TaskTuning overrides one task's scheduling knobs.
//
// Enabled is a pointer so "omitted" (task default) is distinguishable from
// an explicit false.
type TaskTuning struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Period  string `json:"period,omitempty"` // Go duration string
	Budget  string `json:"budget,omitempty"` // Go duration string
}

type InteractionTuning struct {
	TaskTuning
	// Debounce windows between accepted events of the same kind.
	TapDebounce   string `json:"tap_debounce,omitempty"`
	ShakeDebounce string `json:"shake_debounce,omitempty"`
}

type MaintenanceTuning struct {
	TaskTuning
	// DeepClean is a 5-field cron expression for the nightly storage
	// compaction, e.g. "0 3 * * *". Empty keeps the default slot.
	DeepClean string `json:"deep_clean,omitempty"`
	// LowMemory and CriticalMemory are heap thresholds (bytes) below which
	// the maintenance task warns or forces a collection. Zero keeps the
	// defaults.
	LowMemory      uint64 `json:"low_memory,omitempty"`
	CriticalMemory uint64 `json:"critical_memory,omitempty"`
}
