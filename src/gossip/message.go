package gossip

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto/keys"
	"github.com/ugorji/go/codec"
)

// Kind is the type of the payload carried by a Message.
type Kind uint8

const (
	// CandidateKind carries a candidate delta
	CandidateKind Kind = iota
	// FavouriteKind carries a favourite vote
	FavouriteKind
	// ChainAdvanceKind carries the hash of a committed delta
	ChainAdvanceKind
)

// String ...
func (k Kind) String() string {
	switch k {
	case CandidateKind:
		return "Candidate"
	case FavouriteKind:
		return "Favourite"
	case ChainAdvanceKind:
		return "ChainAdvance"
	default:
		return "Unknown"
	}
}

// Message is the logical content of a gossip.
type Message struct {
	CorrelationID string
	Kind          Kind
	Payload       []byte
}

// NewMessage creates a Message with a fresh correlation ID.
func NewMessage(kind Kind, payload []byte) *Message {
	return &Message{
		CorrelationID: NewCorrelationID(),
		Kind:          kind,
		Payload:       payload,
	}
}

// NewCorrelationID returns a random UUID.
func NewCorrelationID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %v", err))
	}

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%12x",
		buf[0:4],
		buf[4:6],
		buf[6:8],
		buf[8:10],
		buf[10:16])
}

// Marshal returns the bytes covered by the originator's signature.
func (m *Message) Marshal() ([]byte, error) {
	return encode(m)
}

// SignedMessage is the envelope that travels between peers. It is created
// once by the originator and never re-signed by relays.
type SignedMessage struct {
	Message    Message
	Originator string
	Signature  keys.Signature
}

// Sign wraps a message in an envelope signed by signer.
func Sign(m *Message, signer keys.Signer) (*SignedMessage, error) {
	bs, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(bs)
	if err != nil {
		return nil, err
	}
	return &SignedMessage{
		Message:    *m,
		Originator: signer.PublicKeyHex(),
		Signature:  sig,
	}, nil
}

// Verify checks that the envelope was signed by its originator.
func (sm *SignedMessage) Verify() bool {
	if common.EncodeToString(sm.Signature.PublicKey) != sm.Originator {
		return false
	}
	bs, err := sm.Message.Marshal()
	if err != nil {
		return false
	}
	return keys.Verify(sm.Signature, bs)
}

// Marshal ...
func (sm *SignedMessage) Marshal() ([]byte, error) {
	return encode(sm)
}

// Unmarshal ...
func (sm *SignedMessage) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(sm)
}

func encode(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}
