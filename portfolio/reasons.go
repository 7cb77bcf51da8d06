package portfolio

// Close reasons recorded on trades. One shared vocabulary so replay and live
// journals stay byte-comparable.
const (
	ExitStopLoss   = "stop_loss"
	ExitTakeProfit = "take_profit"
	ExitSessionEnd = "session_end"
	ExitSignal     = "strategy_exit"
	ExitEndOfData  = "end_of_data"
)
