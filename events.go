package elite

// Event kinds handed to the notifier.
const (
	EventLevelUp     = "level_up"
	EventAchievement = "achievement"
)

// Event records a rule firing. It is built from the counter snapshot the rule
// was evaluated against, before any effect adjustments landed.
type Event struct {
	Kind    string
	RuleID  string
	Account Account
	Counter string
	Old     int64
	New     int64
	Meta    map[string]string
}

// Notifier receives events from the ledger. The hand-off is synchronous and
// happens at most once per event; implementations must return quickly and
// must not fail the mutation that produced the event.
type Notifier interface {
	Notify(evt *Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(evt *Event)

func (f NotifierFunc) Notify(evt *Event) {
	f(evt)
}
