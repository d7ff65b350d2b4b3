package usecase

const (
	OutcomeStored    = "stored"
	OutcomeDuplicate = "duplicate"
)

type noopMetrics struct{}

func (noopMetrics) ObserveBatch(int) {}
func (noopMetrics) ObserveInvoice(string) {}
func (noopMetrics) ObserveSummaryFailure() {}
func (noopMetrics) ObservePages(int) {}
