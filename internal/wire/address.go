package wire

import "fmt"

// Address is the 3-tuple identifying an actor: a name unique within a
// host, the host it runs on, and the TCP port its Receiver publishes
// on (0 if it does not publish remotely). Two addresses are equal iff
// all three fields are equal.
type Address struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// NewLocalAddress builds an Address for a bare name on localhost with
// no published port, the normalization ActorRef applies to a bare
// string target.
func NewLocalAddress(name string) Address {
	return Address{Name: name, Host: "localhost", Port: 0}
}

// Equal reports whether a and other name the same actor.
func (a Address) Equal(other Address) bool {
	return a.Name == other.Name && a.Host == other.Host && a.Port == other.Port
}

func (a Address) String() string {
	return fmt.Sprintf("%s@%s:%d", a.Name, a.Host, a.Port)
}

// Addressable is implemented by anything an ActorRef can target:
// actors, refs, and bare addresses all expose their own Address().
type Addressable interface {
	Address() Address
}

// ToAddress normalizes the three shapes ActorRef accepts: a bare
// name, an Address, or an Addressable — mirroring ActorRef's
// constructor-time normalization in the original runtime.
func ToAddress(target any) (Address, error) {
	switch v := target.(type) {
	case Address:
		return v, nil
	case string:
		return NewLocalAddress(v), nil
	case Addressable:
		return v.Address(), nil
	default:
		return Address{}, fmt.Errorf("actor: cannot address value of type %T", target)
	}
}
