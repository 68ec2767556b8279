package monitor

type HttpRequestLabels struct {
	Status string
	Route  string
	Method string
}

type WatcherJobLabels struct {
	Ticker  string
	Outcome string
}

func (w WatcherJobLabels) ToMap() map[string]string {
	return map[string]string{
		"ticker":  w.Ticker,
		"outcome": w.Outcome,
	}
}

type WebhookDeliveryLabels struct {
	Ticker string
	Result string
}

func (w WebhookDeliveryLabels) ToMap() map[string]string {
	return map[string]string{
		"ticker": w.Ticker,
		"result": w.Result,
	}
}

var (
	TickerLabelNames          = []string{"ticker"}
	WatcherJobLabelNames      = []string{"ticker", "outcome"}
	WebhookDeliveryLabelNames = []string{"ticker", "result"}
	WalletRPCErrorLabelNames  = []string{"ticker", "method"}
	StatusCacheLabelNames     = []string{"outcome"}
)
