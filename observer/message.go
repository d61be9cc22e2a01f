package observer

import "github.com/google/uuid"

type (
	// Token correlates one emit/done stream. Tokens are globally unique and
	// are never reused by another stream
	Token string

	// Kind tags a Message
	Kind uint8

	// Message is the wire shape of a relayed stream: {emit, token, data}
	// or {done, token}
	Message struct {
		Kind  Kind
		Token Token
		Data  any
	}

	// Target receives relayed messages. Send must not block the caller on
	// the receiver's progress
	Target interface {
		Send(Message)
	}
)

const (
	KindEmit Kind = iota
	KindDone
)

// NewToken mints a fresh correlation token
func NewToken() Token {
	return Token(uuid.NewString())
}

// Emit builds an emit message
func Emit(token Token, data any) Message {
	return Message{Kind: KindEmit, Token: token, Data: data}
}

// Done builds a completion message
func Done(token Token) Message {
	return Message{Kind: KindDone, Token: token}
}

func (k Kind) String() string {
	switch k {
	case KindEmit:
		return "emit"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}
