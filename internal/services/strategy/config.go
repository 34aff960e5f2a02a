package strategy

// Config holds the TPC (trend, pullback, confirmation) parameters.
type Config struct {
	Name string

	H4EMAFast       int
	H4EMASlow       int
	H4SlopeLookback int
	H4Bars          int

	H1EMAFast     int
	H1EMASlow     int
	H1ATR         int
	H1Bars        int
	TouchLookback int

	OverextendATR float64
	TouchATR      float64

	PullbackWindow    int
	MinATRMultiple    float64
	BufferATRMultiple float64

	SwingLeft  int
	SwingRight int

	ExpiresHours int
}

// DefaultConfig returns the TPC_v1 parameter set.
func DefaultConfig() Config {
	return Config{
		Name:              "TPC_v1",
		H4EMAFast:         50,
		H4EMASlow:         200,
		H4SlopeLookback:   10,
		H4Bars:            400,
		H1EMAFast:         50,
		H1EMASlow:         200,
		H1ATR:             14,
		H1Bars:            800,
		TouchLookback:     12,
		OverextendATR:     1.5,
		TouchATR:          0.2,
		PullbackWindow:    12,
		MinATRMultiple:    0.6,
		BufferATRMultiple: 0.1,
		SwingLeft:         2,
		SwingRight:        2,
		ExpiresHours:      6,
	}
}
