package pool

// Event types, one per observable state transition.
const (
	EventTypeIntakeChanged         = "IntakeChanged"
	EventTypeParticipantJoined     = "ParticipantJoined"
	EventTypeRootPublished         = "RootPublished"
	EventTypePrizeClaimed          = "PrizeClaimed"
	EventTypeRefundEnabled         = "RefundEnabled"
	EventTypeRefundDisabled        = "RefundDisabled"
	EventTypeRefundClaimed         = "RefundClaimed"
	EventTypeCommissionClaimed     = "CommissionClaimed"
	EventTypeUnclaimedSwept        = "UnclaimedSwept"
	EventTypeWithdrawTargetUpdated = "WithdrawTargetUpdated"
)

// Event records one completed state transition. The engine has no transport
// of its own; the hosting layer translates these into whatever event format
// it indexes.
type Event struct {
	Type  string
	Attrs []Attr
}

// Attr is a single key/value event attribute.
type Attr struct {
	Key   string
	Value string
}

func newEvent(typ string, attrs ...Attr) Event {
	return Event{Type: typ, Attrs: attrs}
}
