package advisor

// Config wires runtime settings for the advice domain.
type Config struct {
	Model       string
	Temperature float32
	Prompt      string
}
