package repository

import "FxPipe/internal/domain/models"

// Timeframe aliases the model type so store signatures read naturally.
type Timeframe = models.Timeframe

const (
	TFH1 = models.H1
	TFH4 = models.H4
)

// Timeframes lists every supported timeframe in processing order.
func Timeframes() []Timeframe { return []Timeframe{TFH1, TFH4} }
