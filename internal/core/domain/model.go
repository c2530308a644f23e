package domain

type MessageKind string

const (
	KindDirect MessageKind = "chat"
	KindGroup  MessageKind = "groupchat"
)

// InboundMessage is a decoded message handed over by a transport. Error is set when the transport could not
// decode the payload; such messages are never routed to bots.
type InboundMessage struct {
	Sender string
	Kind   MessageKind
	Body   string
	Error  bool
}

// OutboundMessage is a message on its way to a transport. ID is assigned when the message is queued, Error is set
// by the transport when delivery failed.
type OutboundMessage struct {
	ID    string
	To    string
	Kind  MessageKind
	Body  string
	Error bool
}

type Store struct {
	ID          string `json:"buCode"`
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
}

type Forecast struct {
	Probability string `json:"probability"`
	Date        string `json:"date"`
	Stock       int    `json:"stock"`
}

type Availability struct {
	Stock       int        `json:"stock"`
	Probability string     `json:"probability"`
	RestockDate string     `json:"restockDate"`
	Forecast    []Forecast `json:"forecast"`
}

// Product is one record reported by the inventory checker.
type Product struct {
	ProductID    string       `json:"productId"`
	Store        Store        `json:"store"`
	Availability Availability `json:"availability"`
}

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateRunning
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
