package domain

// Background is a learner's declared track. The zero value means the
// learner has no profile (or an unrecognized one) and gets balanced
// coverage. That is the expected fallback, not an error.
type Background string

const (
	// BackgroundHardware marks learners on the hardware track.
	BackgroundHardware Background = "Hardware"
	// BackgroundSoftware marks learners on the software track.
	BackgroundSoftware Background = "Software"
)

// ParseBackground maps a stored profile value to a Background.
// Anything unrecognized resolves to the balanced default.
func ParseBackground(s string) Background {
	switch Background(s) {
	case BackgroundHardware:
		return BackgroundHardware
	case BackgroundSoftware:
		return BackgroundSoftware
	default:
		return ""
	}
}

// Instruction returns the context-steering instruction injected into
// generation prompts. Pure and total: every value maps to exactly one
// instruction.
func (b Background) Instruction() string {
	switch b {
	case BackgroundHardware:
		return "Focus on hardware: NVIDIA Jetson Orin, Intel RealSense, sensors, actuators, and wiring. " +
			"Emphasize practical, hands-on hardware implementation."
	case BackgroundSoftware:
		return "Focus on software: ROS 2 nodes, Python/C++, Gazebo, Isaac Sim, and algorithms. " +
			"Emphasize code examples and software architecture."
	default:
		return "Provide balanced coverage of both hardware and software aspects."
	}
}
